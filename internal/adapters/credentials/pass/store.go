// Package pass stores credentials in the user's password-store under a dnd/ prefix.
package pass

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/bnema/dnd-campaign-cli/internal/domain"
	"github.com/bnema/dnd-campaign-cli/internal/ports"
)

const DefaultPrefix = "dnd"

var ErrUnavailable = errors.New("pass command unavailable")

const notInStore = "is not in the password store"

type runFunc func(ctx context.Context, input string, args ...string) (stdout string, stderr string, err error)

type Store struct {
	prefix string
	run    runFunc
}

var _ ports.SecretStore = (*Store)(nil)

func NewStore() *Store {
	locate := sync.OnceValues(func() (string, error) { return exec.LookPath("pass") })
	return &Store{
		prefix: DefaultPrefix,
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			path, err := locate()
			if err != nil {
				if errors.Is(err, exec.ErrNotFound) {
					return "", "", ErrUnavailable
				}
				return "", "", fmt.Errorf("locate pass command: %w", err)
			}
			return runPass(ctx, path, input, args...)
		},
	}
}

// Put replaces the entry; pass keeps only the first line, so values are single-line.
func (s *Store) Put(ctx context.Context, key string, value string) error {
	if strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf("pass put %q: value spans several lines", s.entry(key))
	}
	_, err := s.call(ctx, "put", key, value+"\n", "insert", "--multiline", "--force")
	return err
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	out, err := s.call(ctx, "get", key, "", "show")
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\r\n"), nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.call(ctx, "delete", key, "", "rm", "--force")
	if errors.Is(err, domain.ErrSecretNotFound) {
		return nil
	}
	return err
}

func (s *Store) call(ctx context.Context, op string, key string, input string, args ...string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	entry := s.entry(key)
	stdout, stderr, err := s.run(ctx, input, append(args, entry)...)
	switch {
	case err == nil:
		return stdout, nil
	case strings.Contains(stderr, notInStore):
		return "", fmt.Errorf("pass %s %q: %w", op, entry, domain.ErrSecretNotFound)
	case stderr == "":
		return "", fmt.Errorf("pass %s %q: %w", op, entry, err)
	default:
		return "", fmt.Errorf("pass %s %q: %w: %s", op, entry, err, stderr)
	}
}

func (s *Store) entry(key string) string {
	key = strings.Trim(strings.TrimSpace(key), "/")
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func runPass(ctx context.Context, path string, input string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	if input != "" {
		cmd.Stdin = strings.NewReader(input)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), strings.TrimSpace(stderr.String()), err
}
