package stages

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/phanatic/phanatic/internal/config"
)

// Stage names, used as ledger labels and artifact tags.
const (
	StageTrim        = "Trim"
	StageDedupe      = "Dedupe"
	StageMerge       = "Merge"
	StageNormalise   = "Normalise"
	StageAssembly    = "Assembly"
	StageFilter      = "Filter"
	StageCheckV      = "CheckV"
	StageFastQC      = "FastQC"
	StageMapping     = "Mapping"
	StageHostMapping = "Host mapping"
	StageReassembly  = "Reassembly"
)

// SPAdes k-mer sizes for 150bp paired-end reads.
const spadesKmers = "55,77,99,127"

func xmx(cfg *config.Config) string { return "-Xmx" + cfg.MemoryBudget }

func trimCommand(cfg *config.Config, read1, read2, out string) Command {
	return Command{
		Name: "bbduk.sh",
		Args: []string{
			xmx(cfg),
			"tpe",
			"tbo",
			"in1=" + read1,
			"in2=" + read2,
			"out=" + out,
			fmt.Sprintf("ftl=%d", cfg.TrimLength),
			fmt.Sprintf("ftr=%d", cfg.ReadLength-cfg.TrimLength),
			"qhdist=1",
			"qtrim=10",
			fmt.Sprintf("minlength=%d", cfg.MinimumLength),
		},
	}
}

func dedupeCommand(cfg *config.Config, in, out string) Command {
	return Command{
		Name: "dedupe.sh",
		Args: []string{xmx(cfg), "ac=f", "s=5", "e=2", "in=" + in, "out=" + out},
	}
}

func mergeCommand(cfg *config.Config, in, merged, unmerged string) Command {
	return Command{
		Name: "bbmerge.sh",
		Args: []string{
			xmx(cfg),
			fmt.Sprintf("mininsert=%d", cfg.MinimumInsert),
			fmt.Sprintf("minoverlap=%d", cfg.MinimumOverlap),
			"in=" + in,
			"out=" + merged,
			"outu=" + unmerged,
		},
	}
}

func normaliseCommand(cfg *config.Config, in, out string) Command {
	return Command{
		Name: "bbnorm.sh",
		Args: []string{xmx(cfg), "min=5", fmt.Sprintf("target=%d", cfg.TargetCoverage), "in=" + in, "out=" + out},
	}
}

func assemblyCommand(cfg *config.Config, merged, unmerged, outDir string) Command {
	args := []string{
		"-t", strconv.Itoa(cfg.ThreadCount),
		"-m", strconv.Itoa(cfg.MemoryGB),
		"--only-assembler",
		"--careful",
		"-k", spadesKmers,
		"-o", outDir,
		"--merged", merged,
	}
	if unmerged != "" {
		args = append(args, "-s", unmerged)
	}
	return Command{Name: "spades.py", Args: args}
}

func filterCommand(cfg *config.Config, in, out string) Command {
	return Command{
		Name: "reformat.sh",
		Args: []string{"in=" + in, "out=" + out, fmt.Sprintf("minlength=%d", cfg.FilterLength)},
	}
}

func checkvCommand(cfg *config.Config, in, outDir string) Command {
	return Command{
		Name: "checkv",
		Args: []string{"end_to_end", in, outDir, "-t", strconv.Itoa(cfg.ThreadCount)},
	}
}

func fastqcCommand(cfg *config.Config, outDir string, reads ...string) Command {
	args := []string{"-t", strconv.Itoa(cfg.ThreadCount), "-o", outDir}
	return Command{Name: "fastqc", Args: append(args, reads...)}
}

// mappingOutputs are the bbmap report files written into one directory.
type mappingOutputs struct {
	CovStats  string
	ScafStats string
	BaseCov   string
	Mapped    string // reads that mapped, only when requested
}

func newMappingOutputs(dir string, keepMapped bool) mappingOutputs {
	out := mappingOutputs{
		CovStats:  filepath.Join(dir, "covstats.tsv"),
		ScafStats: filepath.Join(dir, "scafstats.tsv"),
		BaseCov:   filepath.Join(dir, "basecov.tsv"),
	}
	if keepMapped {
		out.Mapped = filepath.Join(dir, "mapped.fastq")
	}
	return out
}

func mappingCommand(cfg *config.Config, ref, reads string, out mappingOutputs) Command {
	args := []string{
		xmx(cfg),
		"ref=" + ref,
		"in=" + reads,
		"nodisk",
		"ambiguous=random",
		fmt.Sprintf("threads=%d", cfg.ThreadCount),
		"covstats=" + out.CovStats,
		"scafstats=" + out.ScafStats,
		"basecov=" + out.BaseCov,
	}
	if out.Mapped != "" {
		args = append(args, "outm="+out.Mapped)
	}
	return Command{Name: "bbmap.sh", Args: args}
}
