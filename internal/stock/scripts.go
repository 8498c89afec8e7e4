package stock

// Lua scripts executed server-side so the read/compare/write sequence is a
// single atomic unit at the Redis endpoint, even though a caller also holds
// an advisory lease (package lock or quorum).
const (
	// decreaseScript performs the atomic conditional decrement.
	// KEYS[1] = stock key. ARGV[1] = quantity.
	// Returns -2 if the key is absent, -1 if stock < quantity, otherwise the
	// remaining stock after decrementing.
	decreaseScript = `
local current = redis.call("GET", KEYS[1])
if not current then
	return -2
end
current = tonumber(current)
local quantity = tonumber(ARGV[1])
if current >= quantity then
	return redis.call("DECRBY", KEYS[1], quantity)
else
	return -1
end
`

	// seedScript performs the idempotent seed: set-if-absent with
	// no TTL (stock counters live for the life of the product).
	// KEYS[1] = stock key. ARGV[1] = initial quantity.
	// Returns 1 if the key was set, 0 if it already existed.
	seedScript = `
if redis.call("SETNX", KEYS[1], ARGV[1]) == 1 then
	return 1
else
	return 0
end
`
)
