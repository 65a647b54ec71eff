package vectorid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Separator joins the fields of a vector id: userId::docId::n.
const Separator = "::"

var ErrMalformedID = errors.New("malformed vector id")

type Key struct {
	UserID string
	DocID  string
	N      int
}

func Encode(userID, docID string, n int) (string, error) {
	if userID == "" || docID == "" {
		return "", fmt.Errorf("vectorid encode: empty user or document id")
	}
	if strings.Contains(userID, Separator) || strings.Contains(docID, Separator) {
		return "", fmt.Errorf("vectorid encode: id contains %q", Separator)
	}
	if n < 0 {
		return "", fmt.Errorf("vectorid encode: negative chunk index %d", n)
	}
	return userID + Separator + docID + Separator + strconv.Itoa(n), nil
}

func Decode(id string) (Key, error) {
	parts := strings.Split(id, Separator)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return Key{}, fmt.Errorf("%w: %q", ErrMalformedID, id)
	}
	n, ok := parseIndex(parts[2])
	if !ok {
		return Key{}, fmt.Errorf("%w: %q", ErrMalformedID, id)
	}
	return Key{UserID: parts[0], DocID: parts[1], N: n}, nil
}

// parseIndex accepts canonical non-negative decimals only ("0", "17"; not "+1", "01").
func parseIndex(s string) (int, bool) {
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Range returns the ids of chunks 0..count-1.
func Range(userID, docID string, count int) ([]string, error) {
	if count <= 0 {
		return []string{}, nil
	}
	out := make([]string, 0, count)
	for n := 0; n < count; n++ {
		id, err := Encode(userID, docID, n)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
