package quorum

// Lua scripts run independently against each of the N endpoints. Unlike
// package lock/stock (single endpoint, one atomic truth), agreement across
// endpoints here is established by counting per-endpoint replies in Go, not
// by any cross-endpoint transaction; there is no consensus protocol
// between the N Redis processes.
const (
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

	releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`
)
