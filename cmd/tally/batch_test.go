package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/tally/internal/config"
	"github.com/JaimeStill/tally/internal/pipeline"
	"github.com/JaimeStill/tally/invoice"
	"github.com/JaimeStill/tally/reconcile"
)

const taxInvoice = `TAX INVOICE
Acme Traders Pvt Ltd
GSTIN: 27ABCDE1234F1Z5
Invoice No: INV-2024/001
Invoice Date: 15-Mar-2024
HSN 8471 Laptop 1,000.00 CGST 9% 90.00 SGST 9% 90.00
Taxable Value 1,000.00
Total Tax 180.00
Grand Total 1,180.00
`

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func transcriptJSON(t *testing.T, text string) string {
	t.Helper()
	data, err := json.Marshal(invoice.Transcript{Text: text})
	require.NoError(t, err)
	return string(data)
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	require.NoError(t, os.Mkdir(in, 0o755))

	writeFile(t, filepath.Join(in, "a.json"), transcriptJSON(t, taxInvoice))
	writeFile(t, filepath.Join(in, "a.guesses.json"), "```json\n{\"invoice_number\": \"GUESS-9\"}\n```")
	writeFile(t, filepath.Join(in, "b.json"), transcriptJSON(t, " "))
	writeFile(t, filepath.Join(in, "notes.txt"), "ignored")

	ratesPath := filepath.Join(dir, "hsn.csv")
	writeFile(t, ratesPath, "hsn,gst\n8471,18\n")

	cfg, err := config.LoadFrom(dir)
	require.NoError(t, err)

	var out bytes.Buffer
	s, err := run(context.Background(), cfg, options{
		in:            in,
		rates:         ratesPath,
		workers:       2,
		guessesSuffix: ".guesses.json",
	}, &out, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	assert.Equal(t, summary{Documents: 2, Flagged: 1, Failed: 1}, s)

	var outcomes []pipeline.Outcome
	require.NoError(t, json.Unmarshal(out.Bytes(), &outcomes))
	require.Len(t, outcomes, 2)

	assert.Equal(t, "a.json", outcomes[0].ID)
	require.NotNil(t, outcomes[0].Result)
	assert.Equal(t, "GUESS-9", outcomes[0].Result.Document.InvoiceNumber)
	assert.Equal(t, reconcile.StatusFlagged, outcomes[0].Result.Status)

	assert.Equal(t, "b.json", outcomes[1].ID)
	assert.Contains(t, outcomes[1].Error, invoice.ErrEmptyTranscript.Error())
}

func TestLoadRequests(t *testing.T) {
	t.Run("single file with plain string", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "one.json")
		writeFile(t, path, `"Invoice No: A-1"`)

		reqs, err := loadRequests(path, ".guesses.json")
		require.NoError(t, err)
		require.Len(t, reqs, 1)
		assert.Equal(t, "one.json", reqs[0].ID)
		assert.Equal(t, "Invoice No: A-1", reqs[0].Transcript.Text)
		assert.Nil(t, reqs[0].Guesses)
	})

	t.Run("empty directory", func(t *testing.T) {
		_, err := loadRequests(t.TempDir(), ".guesses.json")
		assert.ErrorIs(t, err, errNoInputs)
	})

	t.Run("malformed transcript", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		writeFile(t, path, `{"text": `)

		_, err := loadRequests(path, ".guesses.json")
		assert.Error(t, err)
	})
}
