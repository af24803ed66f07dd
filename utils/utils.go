package utils

import (
	"crypto/rand"
	"math/big"
	"net/http"
	"strconv"
	"strings"
)

var digitRunes = []rune("0123456789")

// GenerateRandomDigitString creates a random numeric string of length n.
func GenerateRandomDigitString(n int) string {
	b := make([]rune, n)
	max := big.NewInt(int64(len(digitRunes)))
	for i := range b {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		b[i] = digitRunes[v.Int64()]
	}
	return string(b)
}

type QueryOptions struct {
	Page  int
	Limit int
}

// ParseQueryOptions reads ?page= and ?limit=, capping limit at 100.
func ParseQueryOptions(r *http.Request) QueryOptions {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return QueryOptions{Page: page, Limit: limit}
}

func (q QueryOptions) Skip() int64 {
	return int64((q.Page - 1) * q.Limit)
}

func ContainsIgnoreCase(str, substr string) bool {
	return strings.Contains(strings.ToLower(str), strings.ToLower(substr))
}
