package redis

// KeyPrefix namespaces every tripsync key in a shared Redis.
const KeyPrefix = "tripsync:"

// Key returns the Redis key for a store key.
func Key(key string) string {
	return KeyPrefix + key
}
