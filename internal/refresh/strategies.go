package refresh

import (
	"context"
	"time"

	"github.com/blackwell-systems/modsync/internal/catalog"
	"github.com/blackwell-systems/modsync/internal/mods"
)

// search runs the author strategy and then the batch strategy over the
// pending mods. Mods still unresolved afterwards are cached as not found.
func (s *Service) search(ctx context.Context, all []mods.Mod, pending []int) error {
	s.setProgress(&Progress{Total: len(pending)})

	if err := s.searchByAuthor(ctx, all, pending); err != nil {
		return err
	}

	pending = unresolved(all)
	if len(pending) > 0 {
		if err := s.searchBatches(ctx, all, pending); err != nil {
			return err
		}
	}

	for _, i := range unresolved(all) {
		if err := s.store.CacheMod(all[i].Name, "", "", true); err != nil {
			s.logger.Warn("failed to cache not-found mod", "mod", all[i].Name, "error", err)
		}
		s.logger.Warn("mod not found", "mod", all[i].Name)
	}
	return nil
}

// searchByAuthor queries the catalog once per distinct author and only
// matches against entries listing that author.
func (s *Service) searchByAuthor(ctx context.Context, all []mods.Mod, pending []int) error {
	authors := distinctAuthors(all, pending)
	s.logger.Info("strategy 1: searching by author", "authors", len(authors))

	for _, author := range authors {
		if len(unresolved(all)) == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		var candidates []catalog.Entry
		for _, e := range s.catalog.Search(ctx, author) {
			if e.HasAuthor(author) {
				candidates = append(candidates, e)
			}
		}

		for _, i := range unresolved(all) {
			if all[i].HasAuthor(author) {
				s.attempt(&all[i], candidates, "author")
			}
		}

		if err := s.wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// searchBatches pages through the catalog until every mod is resolved,
// a page comes back empty or the offset bound is reached.
func (s *Service) searchBatches(ctx context.Context, all []mods.Mod, pending []int) error {
	s.logger.Info("strategy 2: global batch search", "remaining", len(pending))

	for offset := 0; offset < s.cfg.MaxOffset; offset += s.cfg.PageSize {
		remaining := unresolved(all)
		if len(remaining) == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		page := s.catalog.Batch(ctx, offset, s.cfg.PageSize)
		if len(page) == 0 {
			s.logger.Debug("empty catalog page, stopping", "offset", offset)
			return nil
		}

		for _, i := range remaining {
			s.attempt(&all[i], page, "batch")
		}

		if err := s.wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// attempt matches one mod against candidates and caches a hit.
func (s *Service) attempt(mod *mods.Mod, candidates []catalog.Entry, strategy string) {
	s.updateProgress(func(p *Progress) { p.CurrentMod = mod.Name })

	match, ok := s.matcher.FindBestMatch(mod.Name, candidates)
	if !ok {
		return
	}

	mod.Resolve(match.URL, match.LatestVersion, mods.Method(match.Method))
	s.updateProgress(func(p *Progress) { p.Processed++ })
	s.recordResolved(mod.FoundVia)

	if err := s.store.CacheMod(mod.Name, match.URL, match.LatestVersion, false); err != nil {
		s.logger.Warn("failed to cache mod", "mod", mod.Name, "error", err)
	}

	latest := match.LatestVersion
	if latest == "" {
		latest = "unknown"
	}
	s.logger.Info("found mod", "mod", mod.Name, "strategy", strategy, "url", match.URL,
		"version", latest, "via", match.Method)
}

// wait sleeps for the rate limit or until ctx is done.
func (s *Service) wait(ctx context.Context) error {
	if s.cfg.RateLimit < 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.cfg.RateLimit)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// distinctAuthors returns the authors of the pending mods in order of
// first appearance, without the placeholder author.
func distinctAuthors(all []mods.Mod, pending []int) []string {
	seen := make(map[string]bool)
	var authors []string
	for _, i := range pending {
		for _, a := range all[i].Authors {
			if a == mods.UnknownAuthor || seen[a] {
				continue
			}
			seen[a] = true
			authors = append(authors, a)
		}
	}
	return authors
}
