// Package batch answers many questions at once, locally or as a Temporal
// workflow, and scores the answers against expected values when present.
package batch

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"
)

// Question is one batch item.
type Question struct {
	ID       string `json:"id" yaml:"id"`
	Question string `json:"question" yaml:"question"`
	Expected string `json:"expected,omitempty" yaml:"expected"`
}

// LoadQuestions reads questions from path. The format follows the
// extension: .yaml/.yml, .json (SQuAD v2 or a plain question list), .csv,
// .xlsx, and anything else as one question per line. Items without an ID
// are numbered from 1.
func LoadQuestions(path string) ([]Question, error) {
	var (
		qs  []Question
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		qs, err = readYAML(path)
	case ".json":
		qs, err = readJSON(path)
	case ".csv":
		qs, err = readCSV(path)
	case ".xlsx":
		qs, err = readXLSX(path)
	default:
		qs, err = readLines(path)
	}
	if err != nil {
		return nil, err
	}

	out := make([]Question, 0, len(qs))
	for _, q := range qs {
		q.Question = strings.TrimSpace(q.Question)
		if q.Question == "" {
			continue
		}
		q.Expected = strings.TrimSpace(q.Expected)
		out = append(out, q)
	}
	if len(out) == 0 {
		return nil, eris.Errorf("batch: no questions in %s", path)
	}
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = fmt.Sprintf("%d", i+1)
		}
	}
	return out, nil
}

type yamlFile struct {
	Questions []Question `yaml:"questions"`
}

func readYAML(path string) ([]Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "batch: read yaml")
	}
	var f yamlFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "batch: parse yaml")
	}
	return f.Questions, nil
}

// squadFile is the subset of the SQuAD v2 layout used here.
type squadFile struct {
	Data []struct {
		Paragraphs []struct {
			QAs []struct {
				ID       string `json:"id"`
				Question string `json:"question"`
				Answers  []struct {
					Text string `json:"text"`
				} `json:"answers"`
			} `json:"qas"`
		} `json:"paragraphs"`
	} `json:"data"`
}

func readJSON(path string) ([]Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "batch: read json")
	}

	var list []Question
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var sq squadFile
	if err := json.Unmarshal(data, &sq); err != nil {
		return nil, eris.Wrap(err, "batch: parse json")
	}
	var out []Question
	for _, article := range sq.Data {
		for _, para := range article.Paragraphs {
			for _, qa := range para.QAs {
				q := Question{ID: qa.ID, Question: qa.Question}
				if len(qa.Answers) > 0 {
					q.Expected = qa.Answers[0].Text
				}
				out = append(out, q)
			}
		}
	}
	return out, nil
}

// rowsToQuestions maps rows with a header naming id, question and expected
// columns. A headerless sheet is read as question[, expected].
func rowsToQuestions(rows [][]string) []Question {
	if len(rows) == 0 {
		return nil
	}
	col := map[string]int{"id": -1, "question": -1, "expected": -1}
	for i, h := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, ok := col[key]; ok {
			col[key] = i
		}
	}
	if col["question"] < 0 {
		col = map[string]int{"id": -1, "question": 0, "expected": 1}
	} else {
		rows = rows[1:]
	}

	cell := func(row []string, name string) string {
		i := col[name]
		if i < 0 || i >= len(row) {
			return ""
		}
		return row[i]
	}
	out := make([]Question, 0, len(rows))
	for _, row := range rows {
		out = append(out, Question{
			ID:       cell(row, "id"),
			Question: cell(row, "question"),
			Expected: cell(row, "expected"),
		})
	}
	return out
}

func readCSV(path string) ([]Question, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "batch: open csv")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "batch: read csv")
	}
	return rowsToQuestions(rows), nil
}

func readXLSX(path string) ([]Question, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "batch: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("batch: %s has no sheets", path)
	}

	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for i, c := range row.Cells {
			cells[i] = c.String()
		}
		rows = append(rows, cells)
	}
	return rowsToQuestions(rows), nil
}

func readLines(path string) ([]Question, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "batch: open")
	}
	defer f.Close()
	return scanLines(f)
}

// scanLines reads one question per line, skipping blanks and # comments.
func scanLines(r io.Reader) ([]Question, error) {
	var out []Question
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, Question{Question: line})
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "batch: scan")
	}
	return out, nil
}
