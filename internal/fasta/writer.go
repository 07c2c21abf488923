package fasta

import (
	"bufio"
	"io"
)

// LineWidth is the sequence wrap width used by Write.
const LineWidth = 60

// Write writes one record with the sequence wrapped at LineWidth.
func Write(w io.Writer, header string, seq []byte) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(">" + header + "\n"); err != nil {
		return err
	}
	for off := 0; off < len(seq); off += LineWidth {
		end := off + LineWidth
		if end > len(seq) {
			end = len(seq)
		}
		if _, err := bw.Write(seq[off:end]); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}
