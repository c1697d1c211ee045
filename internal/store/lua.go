// Copyright 2025 James Ross
package store

import "github.com/redis/go-redis/v9"

// The orchestrator leans on Lua scripts for every multi-key transition, the
// way the teacher's idempotency manager uses a single EVAL to check-and-reserve
// a dedupe key instead of a GET followed by a SET.

var dedupeReserveScript = redis.NewScript(`
local ok = redis.call('SET', KEYS[1], ARGV[1], 'NX', 'EX', ARGV[2])
if ok then
	return false
end
return redis.call('GET', KEYS[1])
`)

// enqueueScript writes the job hash and either drops it into its library's
// ready set (indexing the library as a fairness candidate) or, when the job
// carries a dependency_key, parks it in that key's pending fan-in set.
//
// KEYS[1] = job hash key
// KEYS[2] = pending_key fan-in set (scan:pending_key:<library_id>:<key>)
// KEYS[3] = pending set key for the job's kind (bookkeeping for snapshots)
// KEYS[4] = ready set for this job's (kind, library_id)
// KEYS[5] = readyLibs index set for this job's kind
//
// ARGV[1] = state ("ready" or "pending")
// ARGV[2] = ready score
// ARGV[3] = job id
// ARGV[4] = library id
// ARGV[5..] = flattened hash field/value pairs
var enqueueScript = redis.NewScript(`
local state = ARGV[1]
local score = tonumber(ARGV[2])
local job_id = ARGV[3]
local library_id = ARGV[4]

for i = 5, #ARGV, 2 do
	redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
end

if state == 'ready' then
	redis.call('ZADD', KEYS[4], score, job_id)
	redis.call('SADD', KEYS[5], library_id)
else
	redis.call('SADD', KEYS[2], job_id)
	redis.call('SADD', KEYS[3], job_id)
end
return 1
`)

// dequeueScript pops the lowest-score (highest priority, earliest) ready
// member from the first candidate library that still has work, and leases it
// to owner. Candidates are pre-ordered by the caller's fairness decision.
//
// KEYS[1..N] = candidate ready sets, in fairness order
// KEYS[N+1]  = readyLibs index set for this kind
// KEYS[N+2]  = leased key
// KEYS[N+3]  = dequeue counter key
// ARGV[1] = owner
// ARGV[2] = lease expiry unix
// ARGV[3] = job key prefix
// ARGV[4] = number of candidate ready sets (N)
// ARGV[5..5+N-1] = library id for each candidate ready set, parallel to KEYS[1..N]
var dequeueScript = redis.NewScript(`
local n = tonumber(ARGV[4])
local readylibs_key = KEYS[n + 1]
local leased_key = KEYS[n + 2]
local counter_key = KEYS[n + 3]

for i = 1, n do
	local ready_key = KEYS[i]
	local ids = redis.call('ZRANGEBYSCORE', ready_key, '-inf', '+inf', 'LIMIT', 0, 1)
	if #ids > 0 then
		local id = ids[1]
		redis.call('ZREM', ready_key, id)
		if redis.call('ZCARD', ready_key) == 0 then
			redis.call('SREM', readylibs_key, ARGV[4 + i])
		end
		local job_key = ARGV[3] .. id
		redis.call('HSET', job_key, 'state', 'leased', 'lease_owner', ARGV[1], 'lease_expiry', ARGV[2])
		redis.call('HINCRBY', job_key, 'attempts', 1)
		redis.call('ZADD', leased_key, tonumber(ARGV[2]), id)
		redis.call('INCR', counter_key)
		return id
	end
end
return false
`)

// renewScript extends a held lease, failing if ownership has moved on.
//
// KEYS[1] = job key
// KEYS[2] = leased key
// ARGV[1] = owner
// ARGV[2] = new lease expiry unix
// ARGV[3] = job id
var renewScript = redis.NewScript(`
local owner = redis.call('HGET', KEYS[1], 'lease_owner')
if owner ~= ARGV[1] then
	return 0
end
redis.call('HSET', KEYS[1], 'lease_expiry', ARGV[2])
redis.call('ZADD', KEYS[2], tonumber(ARGV[2]), ARGV[3])
return 1
`)

// completeScript marks a job completed, drops its lease, and releases its
// dedupe key. Dependency fan-in release is a separate, explicit Queue
// Service call (release_dependency), not performed here.
//
// KEYS[1] = job key
// KEYS[2] = leased key
// ARGV[1] = owner
// ARGV[2] = job id
// ARGV[3] = dedupe key (may be empty)
var completeScript = redis.NewScript(`
local owner = redis.call('HGET', KEYS[1], 'lease_owner')
if owner ~= ARGV[1] then
	return redis.error_reply('lease_owner_mismatch')
end
redis.call('HSET', KEYS[1], 'state', 'completed')
redis.call('ZREM', KEYS[2], ARGV[2])
if ARGV[3] ~= '' then
	redis.call('DEL', ARGV[3])
end
return 1
`)

// releaseDependencyScript atomically drains a pending_key fan-in set,
// promoting every waiting job straight from Pending to Ready.
//
// KEYS[1] = pending_key fan-in set
// ARGV[1] = job key prefix
// ARGV[2] = bare key prefix (e.g. "scan"), used to build per-kind pending/ready keys
var releaseDependencyScript = redis.NewScript(`
local ids = redis.call('SMEMBERS', KEYS[1])
for _, id in ipairs(ids) do
	local job_key = ARGV[1] .. id
	local kind = redis.call('HGET', job_key, 'kind')
	local library_id = redis.call('HGET', job_key, 'library_id')
	local priority = tonumber(redis.call('HGET', job_key, 'priority'))
	local created = tonumber(redis.call('HGET', job_key, 'created_at_unix'))
	redis.call('HSET', job_key, 'state', 'ready')
	redis.call('SREM', ARGV[2] .. ':pending:' .. kind, id)
	local ready_key = ARGV[2] .. ':ready:' .. kind .. ':' .. library_id
	redis.call('ZADD', ready_key, priority * 1e13 + created, id)
	redis.call('SADD', ARGV[2] .. ':readylibs:' .. kind, library_id)
end
redis.call('DEL', KEYS[1])
return #ids
`)

// failScript moves a job to deferred (with backoff) or to its dead letter
// list, releasing the lease either way.
//
// KEYS[1] = job key
// KEYS[2] = leased key
// ARGV[1] = owner
// ARGV[2] = job id
// ARGV[3] = action ("retry" or "dead_letter")
// ARGV[4] = deferred key
// ARGV[5] = dead letter key
// ARGV[6] = not_before RFC3339Nano string
// ARGV[7] = error message
// ARGV[8] = dedupe key (may be empty, only cleared on dead_letter)
// ARGV[9] = not_before unix (score for deferred zset)
var failScript = redis.NewScript(`
local owner = redis.call('HGET', KEYS[1], 'lease_owner')
if owner ~= ARGV[1] then
	return 0
end
redis.call('ZREM', KEYS[2], ARGV[2])
redis.call('HSET', KEYS[1], 'last_error', ARGV[7])
if ARGV[3] == 'retry' then
	redis.call('HSET', KEYS[1], 'state', 'deferred', 'not_before', ARGV[6])
	redis.call('ZADD', ARGV[4], tonumber(ARGV[9]), ARGV[2])
else
	redis.call('HSET', KEYS[1], 'state', 'dead_letter')
	redis.call('RPUSH', ARGV[5], ARGV[2])
	if ARGV[8] ~= '' then
		redis.call('DEL', ARGV[8])
	end
end
return 1
`)

// promoteDeferredScript moves deferred jobs whose not_before has elapsed back
// into their library's ready set, the way a retry timer wakes a backed-off job.
//
// KEYS[1] = deferred key
// ARGV[1] = now unix
// ARGV[2] = job key prefix
// ARGV[3] = bare key prefix
var promoteDeferredScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
for _, id in ipairs(ids) do
	redis.call('ZREM', KEYS[1], id)
	local job_key = ARGV[2] .. id
	redis.call('HSET', job_key, 'state', 'ready')
	local kind = redis.call('HGET', job_key, 'kind')
	local library_id = redis.call('HGET', job_key, 'library_id')
	local priority = tonumber(redis.call('HGET', job_key, 'priority'))
	local created = tonumber(redis.call('HGET', job_key, 'created_at_unix'))
	local ready_key = ARGV[3] .. ':ready:' .. kind .. ':' .. library_id
	redis.call('ZADD', ready_key, priority * 1e13 + created, id)
	redis.call('SADD', ARGV[3] .. ':readylibs:' .. kind, library_id)
end
return #ids
`)

// sweepExpiredLeasesScript resurrects jobs whose lease holder went silent,
// requeueing them for another attempt or dead-lettering when attempts are
// exhausted.
//
// KEYS[1] = leased key
// ARGV[1] = now unix
// ARGV[2] = dead letter key
// ARGV[3] = job key prefix
// ARGV[4] = bare key prefix
var sweepExpiredLeasesScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
for _, id in ipairs(ids) do
	redis.call('ZREM', KEYS[1], id)
	local job_key = ARGV[3] .. id
	redis.call('HSET', job_key, 'lease_owner', '')
	local attempts = tonumber(redis.call('HGET', job_key, 'attempts'))
	local max_attempts = tonumber(redis.call('HGET', job_key, 'max_attempts'))
	if attempts and max_attempts and attempts >= max_attempts then
		redis.call('HSET', job_key, 'state', 'dead_letter')
		redis.call('RPUSH', ARGV[2], id)
	else
		redis.call('HSET', job_key, 'state', 'ready')
		local kind = redis.call('HGET', job_key, 'kind')
		local library_id = redis.call('HGET', job_key, 'library_id')
		local priority = tonumber(redis.call('HGET', job_key, 'priority'))
		local created = tonumber(redis.call('HGET', job_key, 'created_at_unix'))
		local ready_key = ARGV[4] .. ':ready:' .. kind .. ':' .. library_id
		redis.call('ZADD', ready_key, priority * 1e13 + created, id)
		redis.call('SADD', ARGV[4] .. ':readylibs:' .. kind, library_id)
	end
end
return #ids
`)

// cancelScript removes a job from whichever queue it currently sits in and
// marks it cancelled, provided it has not already reached a terminal state.
//
// KEYS[1] = job key
// ARGV[1] = job id
// ARGV[2] = deferred key
// ARGV[3] = leased key
// ARGV[4] = pending set key
// ARGV[5] = dedupe key (may be empty)
// ARGV[6] = bare key prefix
var cancelScript = redis.NewScript(`
local state = redis.call('HGET', KEYS[1], 'state')
if state == 'completed' or state == 'dead_letter' or state == 'cancelled' or state == false then
	return 0
end
local kind = redis.call('HGET', KEYS[1], 'kind')
local library_id = redis.call('HGET', KEYS[1], 'library_id')
local ready_key = ARGV[6] .. ':ready:' .. kind .. ':' .. library_id
redis.call('ZREM', ready_key, ARGV[1])
redis.call('ZREM', ARGV[2], ARGV[1])
redis.call('ZREM', ARGV[3], ARGV[1])
redis.call('SREM', ARGV[4], ARGV[1])
redis.call('HSET', KEYS[1], 'state', 'cancelled')
if ARGV[5] ~= '' then
	redis.call('DEL', ARGV[5])
end
return 1
`)

// requeueDeadLetterScript pulls a job back out of its kind's dead letter
// list, resets its attempt counter, and drops it back into its library's
// ready set as if freshly enqueued.
//
// KEYS[1] = job key
// KEYS[2] = dead letter key
// ARGV[1] = job id
// ARGV[2] = ready key prefix (bare prefix, kind and library appended in Lua)
// ARGV[3] = readylibs key prefix
var requeueDeadLetterScript = redis.NewScript(`
local state = redis.call('HGET', KEYS[1], 'state')
if state ~= 'dead_letter' then
	return 0
end
local removed = redis.call('LREM', KEYS[2], 1, ARGV[1])
if removed == 0 then
	return 0
end
local kind = redis.call('HGET', KEYS[1], 'kind')
local library_id = redis.call('HGET', KEYS[1], 'library_id')
local priority = tonumber(redis.call('HGET', KEYS[1], 'priority'))
local created = tonumber(redis.call('HGET', KEYS[1], 'created_at_unix'))
redis.call('HSET', KEYS[1], 'state', 'ready', 'attempts', '0', 'last_error', '')
local ready_key = ARGV[2] .. ':ready:' .. kind .. ':' .. library_id
redis.call('ZADD', ready_key, priority * 1e13 + created, ARGV[1])
redis.call('SADD', ARGV[3] .. ':readylibs:' .. kind, library_id)
return 1
`)
