package model

// ScanJob asks the acquisition worker to make a bib available in the cache.
type ScanJob struct {
	BatchID string
	Bib     int
}
