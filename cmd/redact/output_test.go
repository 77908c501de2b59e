package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/raaihank/transcript-sentinel/internal/batch"
	"github.com/raaihank/transcript-sentinel/internal/privacy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleBatch() *batch.Result {
	recReport := privacy.NewReport()
	recReport.Merge(privacy.Report{
		ReplacementsByType: map[privacy.Category]int{privacy.CategoryEmail: 1},
		PatternsFound: []privacy.Replacement{
			{Category: privacy.CategoryEmail, Original: "ann@example.com", Replacement: "user0001@anonymized.com", Position: 12},
		},
	})
	total := privacy.NewReport()
	total.Merge(recReport)

	return &batch.Result{
		RunID:            "1a2b3c4d",
		CreatedAt:        time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		RedactedDocument: "Chat 10000001\nCustomer: my email is user0001@anonymized.com",
		Records: []batch.RecordResult{{
			OriginalID:      "Chat_10000001",
			OriginalContent: "Chat 10000001\nCustomer: my email is ann@example.com",
			RedactedContent: "Chat 10000001\nCustomer: my email is user0001@anonymized.com",
			Report:          recReport,
		}},
		Report:            total,
		ConversationCount: 1,
	}
}

func TestRenderText(t *testing.T) {
	data, err := render(fromBatch("chats.txt", sampleBatch()), formatText)
	require.NoError(t, err)
	assert.Equal(t, "Chat 10000001\nCustomer: my email is user0001@anonymized.com\n", string(data))
}

func TestRenderJSONOmitsOriginals(t *testing.T) {
	data, err := render(fromBatch("chats.txt", sampleBatch()), formatJSON)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "ann@example.com")

	var doc outputDocument
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "batch", doc.Mode)
	require.Len(t, doc.Records, 1)
	assert.Equal(t, "Chat_10000001", doc.Records[0].OriginalID)
	assert.Equal(t, 1, doc.Report.ReplacementsByType[privacy.CategoryEmail])
}

func TestRenderYAML(t *testing.T) {
	data, err := render(fromBatch("chats.txt", sampleBatch()), formatYAML)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "ann@example.com")

	var doc map[string]interface{}
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, "1a2b3c4d", doc["run_id"])
	assert.Equal(t, 1, doc["conversation_count"])
}

func TestRenderUnknownFormat(t *testing.T) {
	_, err := render(fromBatch("chats.txt", sampleBatch()), "xml")
	assert.Error(t, err)
}

func TestSummaryPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := newSummaryPrinter(&buf, true)

	p.print(fromBatch("chats.txt", sampleBatch()), "en")
	assert.Equal(t,
		"chats.txt (run 1a2b3c4d)\nProcessed 1 conversations\nAnonymized 1 sensitive items:\n\n  Email addresses: 1\n",
		buf.String())

	buf.Reset()
	p.noConversations("notes.txt", batch.FileStats{OriginalLength: 29, LineCount: 2})
	assert.Equal(t, "notes.txt: no conversations found (29 characters, 2 lines)\n", buf.String())
}

func TestFromTranscript(t *testing.T) {
	doc := fromTranscript("-", &batch.TranscriptResult{RunID: "x", Report: privacy.NewReport(), RedactedDocument: "hi"})
	assert.Equal(t, "transcript", doc.Mode)
	assert.Equal(t, 1, doc.ConversationCount)
	assert.Empty(t, doc.Records)
}
