package search

// Progress receives progress of long scans, synchronously on the calling
// goroutine.
type Progress interface {
	// TotalNumberToScan is called once with the number of candidates.
	TotalNumberToScan(total int)
	// ProcessedNumber is called after each candidate with the number done so far.
	ProcessedNumber(processed int)
}

type noProgress struct{}

func (noProgress) TotalNumberToScan(int) {}
func (noProgress) ProcessedNumber(int)   {}

// NoProgress discards progress reports.
var NoProgress Progress = noProgress{}

func orNoProgress(p Progress) Progress {
	if p == nil {
		return NoProgress
	}
	return p
}
