// Package dataset reads evaluation datasets and writes evaluation reports.
//
// The dataset format is CSV with a header row:
//
//	question,expected_ids
//	"What is ML?","doc-1|doc-2"
//
// expected_ids holds pipe-separated fragment or document IDs.
package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/luminahq/lumina/internal/core/domain"
)

func Load(path string) ([]domain.EvalExample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

func Parse(r io.Reader) ([]domain.EvalExample, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read dataset header: %w", err)
	}
	if strings.TrimSpace(strings.ToLower(header[0])) != "question" {
		return nil, domain.WrapError(domain.ErrValidation, "parse dataset",
			fmt.Errorf("unexpected header %q, want question,expected_ids", strings.Join(header, ",")))
	}

	var examples []domain.EvalExample
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read dataset line %d: %w", line, err)
		}

		question := strings.TrimSpace(record[0])
		if question == "" {
			return nil, domain.WrapError(domain.ErrValidation, "parse dataset",
				fmt.Errorf("line %d: empty question", line))
		}

		expected := make(map[string]struct{})
		for _, id := range strings.Split(record[1], "|") {
			id = strings.TrimSpace(id)
			if id != "" {
				expected[id] = struct{}{}
			}
		}
		if len(expected) == 0 {
			return nil, domain.WrapError(domain.ErrValidation, "parse dataset",
				fmt.Errorf("line %d: no expected ids", line))
		}

		examples = append(examples, domain.EvalExample{
			Question:    question,
			ExpectedIDs: expected,
		})
	}
	return examples, nil
}

// WriteReport writes the report as indented JSON. An empty path writes to
// stdout.
func WriteReport(path string, report *domain.EvalReport) error {
	var out io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create report file: %w", err)
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
