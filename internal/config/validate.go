// This file adds a lightweight linter/validator for Spec values. It performs
// static checks over a decoded Spec and returns a list of issues (errors and
// warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be
	// surfaced to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding for a Spec.
//
// Path is a dotted path into the config (e.g. "storage.kind",
// "contract.fields[2]"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect one.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// knownEncodings are the encodings the CSV parser can decode.
var knownEncodings = map[string]struct{}{
	"": {}, "latin1": {}, "iso-8859-1": {}, "windows-1252": {}, "utf-8": {}, "utf8": {},
}

// knownStorageKinds mirrors the backends that register with the storage
// factory. Unknown kinds are warnings for forward compatibility; the factory
// itself fails hard at run time.
var knownStorageKinds = map[string]struct{}{
	"postgres": {}, "sqlite": {}, "mssql": {}, "mysql": {},
}

// ValidateSpec performs static validation of a run spec. It does not mutate
// the spec; callers decide whether warnings are fatal.
func ValidateSpec(s Spec) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Job) == "" {
		issues = append(issues, Issue{SeverityError, "job",
			"job must not be empty; it labels logs and metrics"})
	}

	issues = append(issues, validateSource(s.Source)...)
	issues = append(issues, validateContract(s)...)
	issues = append(issues, validateStorage(s.Storage)...)
	issues = append(issues, validateRuntime(s.Runtime)...)

	return issues
}

func validateSource(src Source) []Issue {
	var issues []Issue

	if strings.TrimSpace(src.Dir) == "" {
		issues = append(issues, Issue{SeverityError, "source.dir",
			"input directory must not be empty"})
	}
	if strings.TrimSpace(src.Pattern) == "" && strings.TrimSpace(src.File) == "" {
		issues = append(issues, Issue{SeverityError, "source.pattern",
			"either a file pattern or an explicit file is required"})
	}
	enc := strings.ToLower(strings.TrimSpace(src.Encoding))
	if _, ok := knownEncodings[enc]; !ok {
		issues = append(issues, Issue{SeverityError, "source.encoding",
			fmt.Sprintf("unsupported encoding %q", src.Encoding)})
	}

	return issues
}

func validateContract(s Spec) []Issue {
	if err := s.Contract.Validate(); err != nil {
		return []Issue{{SeverityError, "contract", err.Error()}}
	}

	var issues []Issue
	// Non-nullable non-key fields are honored but worth a heads-up: a single
	// bad cell drops the whole row.
	for i, f := range s.Contract.Fields {
		if !f.Nullable && !f.Key && f.Type != "date" && f.Name != s.Contract.LastUpdateColumn {
			issues = append(issues, Issue{SeverityWarning,
				fmt.Sprintf("contract.fields[%d]", i),
				fmt.Sprintf("field %q is non-nullable; rows with an unparsable value are rejected", f.Name)})
		}
	}
	return issues
}

func validateStorage(st Storage) []Issue {
	var issues []Issue

	kind := strings.TrimSpace(st.Kind)
	if kind == "" {
		issues = append(issues, Issue{SeverityError, "storage.kind",
			"storage.kind must not be empty"})
		return issues
	}
	if _, ok := knownStorageKinds[kind]; !ok {
		issues = append(issues, Issue{SeverityWarning, "storage.kind",
			fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", kind)})
	}
	if strings.TrimSpace(st.DB.Table) == "" {
		issues = append(issues, Issue{SeverityError, "storage.db.table",
			"destination table must not be empty"})
	}

	return issues
}

func validateRuntime(rt Runtime) []Issue {
	var issues []Issue

	if rt.FileWorkers < 0 {
		issues = append(issues, Issue{SeverityError, "runtime.file_workers",
			"file_workers must be >= 0 (0 selects the default)"})
	}
	if rt.WriteBatchSize < 0 {
		issues = append(issues, Issue{SeverityError, "runtime.write_batch_size",
			"write_batch_size must be >= 0 (0 selects the default)"})
	}

	return issues
}
