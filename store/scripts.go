package store

import "github.com/redis/go-redis/v9"

// The scripts below are the atomic core of the system. Each named operation
// executes as one indivisible unit relative to every other operation on the
// same keys; the Go side never compensates for partial execution.
//
// Keys for per-user state are built inside the scripts from a prefix
// argument, which assumes a single Redis instance (not cluster mode).

// AdmissionScript promotes up to (maxActive - activeCount) users from the
// waiting zset into the active hash, strictly by ascending score with the
// zset's native lexicographic tie-break.
//
// KEYS: waiting zset, active hash, active counter
// ARGV: maxActive, now (ms), activeTtl (s), state key prefix
// Returns a JSON array of promoted user ids.
var AdmissionScript = redis.NewScript(`
local max = tonumber(ARGV[1])
local now = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])
local count = tonumber(redis.call('GET', KEYS[3]) or '0')
local room = max - count
if room <= 0 then
  return '[]'
end
local popped = redis.call('ZRANGE', KEYS[1], 0, room - 1)
if #popped == 0 then
  return '[]'
end
local slot = cjson.encode({enteredAt = now, expiresAt = now + ttl * 1000})
for _, uid in ipairs(popped) do
  redis.call('ZREM', KEYS[1], uid)
  redis.call('HSET', KEYS[2], uid, slot)
  redis.call('SET', ARGV[4] .. uid, 'ACTIVE', 'EX', ttl)
end
redis.call('INCRBY', KEYS[3], #popped)
return cjson.encode(popped)
`)

// ReserveScript is the stock reservation protocol: state guard, single
// reservation per user, stock check, then decrement + record + state flip,
// all or nothing. Concurrent calls against the last unit yield exactly one
// success.
//
// KEYS: state, stock hash, reservation
// ARGV: ticketTypeId, quantity, reservation JSON, reservationTtl (s)
// Returns JSON {ok, reason?, remaining?}.
var ReserveScript = redis.NewScript(`
local state = redis.call('GET', KEYS[1])
if state ~= 'ACTIVE' then
  return cjson.encode({ok = false, reason = 'NOT_ACTIVE'})
end
if redis.call('EXISTS', KEYS[3]) == 1 then
  return cjson.encode({ok = false, reason = 'ALREADY_RESERVED'})
end
local qty = tonumber(ARGV[2])
local stock = tonumber(redis.call('HGET', KEYS[2], ARGV[1]) or '0')
if stock < qty then
  return cjson.encode({ok = false, reason = 'OUT_OF_STOCK'})
end
local remaining = redis.call('HINCRBY', KEYS[2], ARGV[1], -qty)
redis.call('SET', KEYS[3], ARGV[3], 'EX', tonumber(ARGV[4]))
redis.call('SET', KEYS[1], 'RESERVING', 'EX', tonumber(ARGV[4]))
return cjson.encode({ok = true, remaining = remaining})
`)

// CancelScript restores stock, removes the reservation and hands the user a
// fresh ACTIVE window, including a refreshed active-slot expiry. A user who
// cancels is never left without a valid slot.
//
// KEYS: reservation, stock hash, state, active hash
// ARGV: userId, activeTtl (s), now (ms)
// Returns JSON {ok, reason?, ticketTypeId?, quantity?, remaining?}.
var CancelScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  return cjson.encode({ok = false, reason = 'NO_RESERVATION'})
end
local rsv = cjson.decode(raw)
local remaining = redis.call('HINCRBY', KEYS[2], rsv.ticketTypeId, rsv.quantity)
redis.call('DEL', KEYS[1])
local ttl = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
redis.call('SET', KEYS[3], 'ACTIVE', 'EX', ttl)
redis.call('HSET', KEYS[4], ARGV[1],
  cjson.encode({enteredAt = now, expiresAt = now + ttl * 1000}))
return cjson.encode({ok = true, ticketTypeId = rsv.ticketTypeId,
  quantity = rsv.quantity, remaining = remaining})
`)

// ExpireActiveScript drops active slots whose expiry lapsed and rewrites the
// counter from the surviving hash length. State keys are cleared only while
// still ACTIVE so a RESERVING or PAYING user is not yanked mid-flow.
//
// KEYS: active hash, active counter
// ARGV: now (ms), state key prefix
// Returns the number of removed slots.
var ExpireActiveScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local entries = redis.call('HGETALL', KEYS[1])
local removed = 0
for i = 1, #entries, 2 do
  local uid = entries[i]
  local slot = cjson.decode(entries[i + 1])
  if tonumber(slot.expiresAt) < now then
    redis.call('HDEL', KEYS[1], uid)
    if redis.call('GET', ARGV[2] .. uid) == 'ACTIVE' then
      redis.call('DEL', ARGV[2] .. uid)
    end
    removed = removed + 1
  end
end
redis.call('SET', KEYS[2], redis.call('HLEN', KEYS[1]))
return removed
`)
