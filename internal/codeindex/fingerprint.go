package codeindex

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"ohtscope/internal/ingest"
)

// Fingerprint hashes both source collections without extracting entries,
// applying the same file filters as Build so the result matches the
// fingerprint of a full build. Used to probe the index cache before paying
// for a re-index.
func Fingerprint(ctx context.Context, vehiclePath, motionPath string, excludes []string) (string, error) {
	var vehicle, motion string
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vehicle, err = hashCollection(ctx, ComponentVehicle, vehiclePath, excludes)
		return err
	})
	g.Go(func() error {
		var err error
		motion, err = hashCollection(ctx, ComponentMotion, motionPath, excludes)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", err
	}
	return combineFingerprints(vehicle, motion), nil
}

func hashCollection(ctx context.Context, comp Component, path string, excludes []string) (string, error) {
	h := sha256.New()
	h.Write([]byte(comp))
	err := ingest.WalkBundle(path, func(name string, data []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !sourceExt[strings.ToLower(filepath.Ext(name))] {
			return nil
		}
		if excluded(name, excludes) {
			return nil
		}
		hashFile(h, name, data)
		return nil
	})
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
