package mockfn

import "sync/atomic"

// sequence orders calls across every mock in the process.
var sequence atomic.Uint64

func nextSeq() uint64 {
	return sequence.Add(1)
}

// InOrder reports whether the given calls started in the order they are
// listed.  Nil records are never in order.
func InOrder(records ...*CallRecord) bool {
	var last uint64
	for _, rec := range records {
		if rec == nil || rec.Seq <= last {
			return false
		}
		last = rec.Seq
	}
	return true
}
