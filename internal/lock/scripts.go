package lock

// releaseScript performs the owner-verified delete: GET +
// compare + DEL as a single atomic unit so a holder whose lease already
// expired and was re-acquired by someone else can never delete the new
// holder's lease.
// KEYS[1] = lock key. ARGV[1] = owner token.
// Returns 1 if deleted, 0 if the token didn't match (no-op).
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`
