package flow

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/globus-transfer/internal/globus"
)

// probePath is the directory listed to trigger consent checks.
const probePath = "/"

// CheckConsent lists "/" on every collection and collects the scopes named
// by ConsentRequired errors. Other errors, PermissionDenied included, are
// logged and ignored. Scopes keep collection order and are de-duplicated.
// Only context cancellation is returned as an error.
func CheckConsent(ctx context.Context, lister Lister, logger *slog.Logger, collections ...string) ([]string, error) {
	collections = uniqueStrings(collections)
	found := make([][]string, len(collections))

	g, gctx := errgroup.WithContext(ctx)

	for i, collection := range collections {
		g.Go(func() error {
			_, err := lister.OperationLs(gctx, collection, probePath)
			if err == nil {
				return nil
			}

			if ctx.Err() != nil {
				return ctx.Err()
			}

			var apiErr *globus.TransferAPIError
			if errors.As(err, &apiErr) && apiErr.Info.ConsentRequired != nil {
				found[i] = apiErr.Info.ConsentRequired.RequiredScopes
				logger.Debug("collection requires consent",
					slog.String("collection", collection),
					slog.Any("scopes", found[i]),
				)

				return nil
			}

			logger.Debug("ignoring consent probe error",
				slog.String("collection", collection),
				slog.String("error", err.Error()),
			)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return globus.MergeScopes(found...), nil
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))

	for _, s := range in {
		if seen[s] {
			continue
		}

		seen[s] = true
		out = append(out, s)
	}

	return out
}
