package main

import (
	"crypto/rand"
	"encoding/json"
	"math/big"
	mrand "math/rand"
	"strings"
	"time"
)

const (
	minTestQuestions = 10
	maxTestQuestions = 50

	// 75s per question plus a little slack for reading the instructions.
	secondsPerQuestion = 75
	timeLimitSlack     = 15
)

// clampQuestionCount bounds a requested question count to what the test can
// serve. When fewer than 10 questions exist the whole pool is fair game.
func clampQuestionCount(requested, available int) int {
	if available <= 0 {
		return 0
	}
	lower := minTestQuestions
	if available < minTestQuestions {
		lower = 1
	}
	upper := maxTestQuestions
	if available < upper {
		upper = available
	}
	if requested < lower {
		requested = lower
	}
	if requested > upper {
		requested = upper
	}
	return requested
}

func timeLimitSeconds(questionCount int) int {
	return questionCount*secondsPerQuestion + timeLimitSlack
}

// drawQuestionIDs picks count random IDs without repetition, in random order.
func drawQuestionIDs(allIDs []uint, count int) []uint {
	out := append([]uint(nil), allIDs...)
	r := mrand.New(mrand.NewSource(time.Now().UnixNano()))
	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	if count > len(out) {
		count = len(out)
	}
	return out[:count]
}

func shuffledChoiceIDs(choices []Choice) []uint {
	ids := make([]uint, len(choices))
	for i, c := range choices {
		ids[i] = c.ID
	}
	r := mrand.New(mrand.NewSource(time.Now().UnixNano()))
	r.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	return ids
}

func percentScore(score, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(score) * 100.0 / float64(total)
}

// --- Activation codes ---

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const codeLength = 6

func newActivationCode() string {
	var b strings.Builder
	for i := 0; i < codeLength; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			// crypto/rand only fails when the platform source is broken
			panic(err)
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String()
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// --- Lesson resources ---

// inferResourceType falls back to URL sniffing when the teacher did not tag
// the resource explicitly.
func inferResourceType(explicit, url string) string {
	if explicit != "" {
		return strings.ToLower(explicit)
	}
	lowered := strings.ToLower(url)
	switch {
	case strings.Contains(lowered, "youtube.com"), strings.Contains(lowered, "youtu.be"):
		return "video"
	case strings.HasSuffix(lowered, ".json"):
		return "flashcards"
	case strings.HasSuffix(lowered, ".html"), strings.HasSuffix(lowered, ".htm"):
		return "mindmap"
	case strings.HasSuffix(lowered, ".mp3"), strings.HasSuffix(lowered, ".wav"), strings.Contains(lowered, "audio"):
		return "audio"
	case strings.Contains(lowered, "drive.google.com"), strings.HasSuffix(lowered, ".pdf"):
		return "pdf"
	default:
		return "link"
	}
}

// extractDriveFileID handles the two Google Drive share URL shapes.
func extractDriveFileID(url string) string {
	if idx := strings.Index(url, "/file/d/"); idx >= 0 {
		rest := url[idx+len("/file/d/"):]
		return strings.SplitN(rest, "/", 2)[0]
	}
	if idx := strings.Index(url, "id="); idx >= 0 {
		rest := url[idx+len("id="):]
		return strings.SplitN(rest, "&", 2)[0]
	}
	return ""
}

// normalizeDriveURL converts Drive sharing links into direct download links
// for JSON payloads and preview links for everything else.
func normalizeDriveURL(url string) string {
	if !strings.Contains(strings.ToLower(url), "drive.google.com") {
		return url
	}
	fileID := extractDriveFileID(url)
	if fileID == "" {
		return url
	}
	if strings.HasSuffix(strings.ToLower(url), ".json") {
		return "https://drive.google.com/uc?export=download&id=" + fileID
	}
	return "https://drive.google.com/file/d/" + fileID + "/preview"
}

// toEmbedURL rewrites a resource URL into something an iframe can load.
func toEmbedURL(url string) string {
	lowered := strings.ToLower(url)
	if strings.Contains(lowered, "youtube.com") || strings.Contains(lowered, "youtu.be") {
		var videoID string
		if idx := strings.Index(url, "youtu.be/"); idx >= 0 {
			videoID = strings.SplitN(url[idx+len("youtu.be/"):], "?", 2)[0]
		} else if idx := strings.Index(url, "v="); idx >= 0 {
			videoID = strings.SplitN(url[idx+len("v="):], "&", 2)[0]
		}
		if videoID != "" {
			return "https://www.youtube.com/embed/" + videoID
		}
		return url
	}
	if strings.Contains(lowered, "drive.google.com") {
		return normalizeDriveURL(url)
	}
	return url
}

// --- JSON helpers for frozen custom-test state ---

func marshalIDs(ids []uint) string {
	b, _ := json.Marshal(ids)
	return string(b)
}

func unmarshalIDs(raw string) []uint {
	var ids []uint
	_ = json.Unmarshal([]byte(raw), &ids)
	return ids
}

func marshalSelections(selections map[uint]int) string {
	b, _ := json.Marshal(selections)
	return string(b)
}

func marshalChoiceOrder(order map[uint][]uint) string {
	b, _ := json.Marshal(order)
	return string(b)
}

func unmarshalChoiceOrder(raw string) map[uint][]uint {
	out := map[uint][]uint{}
	_ = json.Unmarshal([]byte(raw), &out)
	return out
}
