package reftable

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"

	"github.com/refstore/reftable/record"
)

// TestDataDriven exercises the table writer, reader, and merged iterator
// through scripted commands, the way darshanime-pebble's data_test.go
// drives DB-level behavior through datadriven command files instead of
// one-off Go assertions.
func TestDataDriven(t *testing.T) {
	datadriven.Walk(t, "testdata", func(t *testing.T, path string) {
		var tables []*Reader
		datadriven.RunTest(t, path, func(t *testing.T, td *datadriven.TestData) string {
			switch td.Cmd {
			case "build":
				opts := WriterOptions{}
				if td.HasArg("min") {
					td.ScanArgs(t, "min", &opts.MinUpdateIndex)
				}
				if td.HasArg("max") {
					td.ScanArgs(t, "max", &opts.MaxUpdateIndex)
				}
				if td.HasArg("block-size") {
					td.ScanArgs(t, "block-size", &opts.BlockSize)
				}
				if td.HasArg("index-objects") {
					opts.IndexObjects = true
				}
				if td.HasArg("unpadded") {
					opts.Unpadded = true
				}

				var buf bytes.Buffer
				w, err := NewWriter(&buf, opts)
				if err != nil {
					return fmt.Sprintf("error: %v\n", err)
				}
				for _, line := range strings.Split(strings.TrimSpace(td.Input), "\n") {
					if line == "" {
						continue
					}
					if err := applyDataLine(w, line); err != nil {
						return fmt.Sprintf("error: %v\n", err)
					}
				}
				if err := w.Close(); err != nil {
					return fmt.Sprintf("error: %v\n", err)
				}
				r, err := NewReader(buf.Bytes(), ReaderOptions{})
				if err != nil {
					return fmt.Sprintf("error: %v\n", err)
				}
				tables = append(tables, r)
				return fmt.Sprintf("ok (table %d)\n", len(tables))

			case "seek-ref":
				var name string
				td.ScanArgs(t, "name", &name)
				m, err := NewMergedTable(tables)
				if err != nil {
					return fmt.Sprintf("error: %v\n", err)
				}
				it, err := m.SeekRef(name)
				if err != nil {
					return fmt.Sprintf("error: %v\n", err)
				}
				var buf bytes.Buffer
				for {
					rec, ok, err := it.Next()
					if err != nil {
						return fmt.Sprintf("error: %v\n", err)
					}
					if !ok {
						break
					}
					fmt.Fprintf(&buf, "%s\n", formatRef(rec))
				}
				return buf.String()

			case "resolve":
				var name string
				td.ScanArgs(t, "name", &name)
				m, err := NewMergedTable(tables)
				if err != nil {
					return fmt.Sprintf("error: %v\n", err)
				}
				rec, ok, err := m.ResolveRef(name)
				if err != nil {
					return fmt.Sprintf("error: %v\n", err)
				}
				if !ok {
					return "absent\n"
				}
				return formatRef(rec) + "\n"

			case "seek-log":
				var name string
				td.ScanArgs(t, "name", &name)
				updateIndex := ^uint64(0)
				if td.HasArg("update-index") {
					var n uint64
					td.ScanArgs(t, "update-index", &n)
					updateIndex = n
				}
				if len(tables) == 0 {
					return "error: no table built\n"
				}
				it, err := tables[len(tables)-1].SeekLog(name, updateIndex)
				if err != nil {
					return fmt.Sprintf("error: %v\n", err)
				}
				var buf bytes.Buffer
				for {
					rec, ok, err := it.Next()
					if err != nil {
						return fmt.Sprintf("error: %v\n", err)
					}
					if !ok {
						break
					}
					fmt.Fprintf(&buf, "%s update-index=%d %s\n", rec.RefName, rec.UpdateIndex, rec.Message)
				}
				return buf.String()

			default:
				t.Fatalf("unknown command %q", td.Cmd)
				return ""
			}
		})
	})
}

func formatRef(rec *record.RefRecord) string {
	switch rec.Kind {
	case record.ValueDeletion:
		return fmt.Sprintf("%s update-index=%d deletion", rec.RefName, rec.UpdateIndex)
	case record.ValueSymbolic:
		return fmt.Sprintf("%s update-index=%d -> %s", rec.RefName, rec.UpdateIndex, rec.TargetName)
	case record.ValuePeeled:
		return fmt.Sprintf("%s update-index=%d %x peeled %x", rec.RefName, rec.UpdateIndex, rec.Value, rec.TargetValue)
	default:
		return fmt.Sprintf("%s update-index=%d %x", rec.RefName, rec.UpdateIndex, rec.Value)
	}
}

// applyDataLine parses one "ref ..." or "log ..." line of a build command's
// input into a record and adds it to w.
func applyDataLine(w *Writer, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	kv := map[string]string{}
	for _, f := range fields[1:] {
		parts := strings.SplitN(f, "=", 2)
		if len(parts) == 2 {
			kv[parts[0]] = parts[1]
		}
	}
	updateIndex, _ := strconv.ParseUint(kv["update-index"], 10, 64)

	switch fields[0] {
	case "ref":
		rec := &record.RefRecord{RefName: kv["name"], UpdateIndex: updateIndex}
		switch kv["kind"] {
		case "symbolic":
			rec.Kind = record.ValueSymbolic
			rec.TargetName = kv["target"]
		case "peeled":
			rec.Kind = record.ValuePeeled
			v, err := hex.DecodeString(kv["value"])
			if err != nil {
				return err
			}
			tv, err := hex.DecodeString(kv["target-value"])
			if err != nil {
				return err
			}
			rec.Value, rec.TargetValue = v, tv
		case "deletion":
			rec.Kind = record.ValueDeletion
		default:
			rec.Kind = record.ValueDirect
			v, err := hex.DecodeString(kv["value"])
			if err != nil {
				return err
			}
			rec.Value = v
		}
		return w.AddRef(rec)

	case "log":
		old, err := hex.DecodeString(kv["old"])
		if err != nil {
			return err
		}
		neu, err := hex.DecodeString(kv["new"])
		if err != nil {
			return err
		}
		return w.AddLog(&record.LogRecord{
			RefName:     kv["name"],
			UpdateIndex: updateIndex,
			Old:         old,
			New:         neu,
			Name:        kv["author"],
			Email:       kv["email"],
			Message:     kv["message"],
		})

	default:
		return fmt.Errorf("unknown record kind %q", fields[0])
	}
}
