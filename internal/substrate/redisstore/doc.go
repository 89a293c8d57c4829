// Package redisstore implements substrate.Backend against a Redis server
// using go-redis. Collection names map one-to-one onto Redis keys.
package redisstore
