package raft

/*
Election rules used by the server package:

A follower whose election timer expires without hearing from a leader increments its term, votes for itself and asks
every other member for a vote in parallel. Failed or timed out vote requests count as "no".

A responder grants its vote iff the request term is not below its own term and it has not voted for a different
candidate in that term. A higher request term is processed first: the responder steps down and forgets its vote.
There is no log comparison.

The candidate wins with Majority(n) votes, counting its own. Otherwise it goes back to follower in the same term and
waits for the next timeout.

Writes are stricter than elections: every follower has to acknowledge before the leader applies a write.
*/

// Majority returns the number of votes needed to win an election in a cluster of n members: floor(n/2) + 1.
func Majority(n int) int {
	return n/2 + 1
}
