package types

import "time"

// ExtractedGenome is an accepted contig written out as a standalone FASTA file.
type ExtractedGenome struct {
	Sample   string `json:"sample"`
	ContigID string `json:"contig_id"`
	Name     string `json:"name"` // {sample}_{contig_id}, also the FASTA header
	Path     string `json:"path"`
	Length   int    `json:"length"`
}

// Barcode is a unique tag issued to one extracted genome.
type Barcode struct {
	Tag    string `json:"phage_id"`
	Sample string `json:"sample_name"`
	Genome string `json:"genome,omitempty"`
}

// LedgerEntry is one immutable line of the run ledger.
type LedgerEntry struct {
	Time    time.Time `json:"time"`
	Stage   string    `json:"stage"`
	Message string    `json:"message"`
}
