package handler

import "student-records/internal/idseq"

func newSequenceOut(year int, last int64) sequenceOut {
	out := sequenceOut{Year: year, LastValue: last, Remaining: idseq.MaxSeq - last}
	if out.Remaining < 0 {
		out.Remaining = 0
	}
	if next, err := idseq.Format(year, int(last)+1); err == nil {
		out.NextID = next
	}
	return out
}
