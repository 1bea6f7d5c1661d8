// Package vanity searches for mint keypairs whose address carries a chosen prefix or
// suffix, and keeps a pool of them ready for launches.
package vanity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/sync/errgroup"

	"github.com/TopTalent-23/bundler-bot-backend/pkg/types"
)

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// Result is a matching keypair and what it cost to find.
type Result struct {
	PrivateKey solana.PrivateKey
	PublicKey  solana.PublicKey
	Attempts   uint64
	Duration   time.Duration
}

// Options configures a search.
type Options struct {
	Prefix  string
	Suffix  string
	Workers int           // defaults to NumCPU
	Timeout time.Duration // zero means until ctx ends
	// CaseInsensitive compares lowercased addresses.
	CaseInsensitive bool
}

// Matcher tests addresses against a prefix and suffix.
type Matcher struct {
	prefix, suffix string
	fold           bool
}

// NewMatcher validates the pattern. Case-sensitive patterns may only use base58 characters.
func NewMatcher(prefix, suffix string, caseInsensitive bool) (Matcher, error) {
	if prefix == "" && suffix == "" {
		return Matcher{}, types.NewValidationError("pattern", "prefix or suffix is required")
	}
	for _, r := range prefix + suffix {
		ok := strings.ContainsRune(base58Alphabet, r)
		if caseInsensitive {
			ok = ok || strings.ContainsRune(base58Alphabet, toggleCase(r))
		}
		if !ok {
			return Matcher{}, types.NewValidationError("pattern", fmt.Sprintf("%q is not a base58 character", r))
		}
	}
	if caseInsensitive {
		prefix, suffix = strings.ToLower(prefix), strings.ToLower(suffix)
	}
	return Matcher{prefix: prefix, suffix: suffix, fold: caseInsensitive}, nil
}

// Match reports whether addr fits the pattern.
func (m Matcher) Match(addr string) bool {
	if m.fold {
		addr = strings.ToLower(addr)
	}
	return strings.HasPrefix(addr, m.prefix) && strings.HasSuffix(addr, m.suffix)
}

var errFound = errors.New("vanity key found")

// Generate runs workers until one finds a matching keypair or the search is cancelled.
func Generate(ctx context.Context, opts Options) (*Result, error) {
	matcher, err := NewMatcher(opts.Prefix, opts.Suffix, opts.CaseInsensitive)
	if err != nil {
		return nil, err
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var (
		attempts atomic.Uint64
		winner   atomic.Pointer[Result]
	)
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for gctx.Err() == nil {
				key, err := solana.NewRandomPrivateKey()
				if err != nil {
					return fmt.Errorf("generate key: %w", err)
				}
				n := attempts.Add(1)
				pub := key.PublicKey()
				if !matcher.Match(pub.String()) {
					continue
				}
				winner.CompareAndSwap(nil, &Result{PrivateKey: key, PublicKey: pub, Attempts: n, Duration: time.Since(start)})
				return errFound
			}
			return nil
		})
	}
	err = g.Wait()

	if res := winner.Load(); res != nil {
		return res, nil
	}
	if err != nil && !errors.Is(err, errFound) {
		return nil, err
	}
	return nil, fmt.Errorf("vanity search stopped after %d attempts: %w", attempts.Load(), ctx.Err())
}

// EstimateDifficulty returns the expected number of attempts for a case-sensitive pattern
// of the given length, saturating at MaxUint64.
func EstimateDifficulty(prefixLen, suffixLen int) uint64 {
	n := prefixLen + suffixLen
	if n <= 0 {
		return 1
	}
	result := uint64(1)
	for i := 0; i < n; i++ {
		if result > math.MaxUint64/58 {
			return math.MaxUint64
		}
		result *= 58
	}
	return result
}

func toggleCase(r rune) rune {
	switch {
	case r >= 'a' && r <= 'z':
		return r - 'a' + 'A'
	case r >= 'A' && r <= 'Z':
		return r - 'A' + 'a'
	}
	return r
}
