// Package store keeps analysis results so they can be fetched by id and reused
// when the same content is uploaded again with the same parameters. Results
// live either in process memory or in redis, and expire after a TTL.
package store
