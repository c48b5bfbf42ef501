package pipeline

import (
	"fmt"
	"strings"

	"github.com/withObsrvr/warehouse-etl/internal/tables"
)

// ValidationResult contains the outcome of record set validation.
type ValidationResult struct {
	Passed   bool
	Errors   []string
	Warnings []string
	RowCount int64
	ByteSize int64
}

// ValidateRecordSet performs quality checks on a record set before it is
// published. This validates:
//   - the set has rows and its encoding is non-empty
//   - the checksum is in sha256:<hex> form
//   - the primary key column is unique
//
// A repeated date_id is an error since dim_date is derived and deduplicated
// here. Any other repeated key is a warning; the warehouse skips the extra
// rows on insert.
func ValidateRecordSet(set tables.RecordSet, data []byte, checksum string) ValidationResult {
	result := ValidationResult{
		Passed:   true,
		RowCount: int64(set.Len()),
		ByteSize: int64(len(data)),
	}

	// Check 1: Non-empty set
	if set.Len() == 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("record set for %s has no rows", set.Table()))
		result.Passed = false
	}

	// Check 2: Non-empty parquet file
	if len(data) == 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("empty parquet data for table %s", set.Table()))
		result.Passed = false
	}

	// Check 3: Checksum format
	if !strings.HasPrefix(checksum, tables.ChecksumPrefix) {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("checksum for %s may be in non-standard format: %s",
				set.Table(), checksum[:min(20, len(checksum))]))
	}

	// Check 4: Primary key uniqueness
	seen := make(map[any]int, set.Len())
	for i := 0; i < set.Len(); i++ {
		key := set.Values(i)[0]
		first, dup := seen[key]
		if !dup {
			seen[key] = i
			continue
		}
		msg := fmt.Sprintf("duplicate %s key %v at rows %d and %d", set.Table(), key, first, i)
		if set.Table() == tables.DimDateTable {
			result.Errors = append(result.Errors, msg)
			result.Passed = false
		} else {
			result.Warnings = append(result.Warnings, msg)
		}
	}

	return result
}
