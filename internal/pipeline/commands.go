package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/rs/zerolog/log"
	"go.lorenzomilicia.dev/imgup/internal/document"
	"go.lorenzomilicia.dev/imgup/internal/encoder"
	"go.lorenzomilicia.dev/imgup/internal/links"
	"go.lorenzomilicia.dev/imgup/internal/uploader"
	"go.lorenzomilicia.dev/imgup/internal/vault"
)

// UploadAll uploads every image referenced in doc and rewrites the references
// to the uploaded URLs. Local images are resolved through the vault; remote
// images are handled only when network uploads are enabled. It returns the
// number of jobs started.
func (o *Orchestrator) UploadAll(ctx context.Context, doc document.Document) (int, error) {
	if !o.Eligible(doc) {
		o.notifier.Notify(localize(o.settings.Language, msgEnableFirst))
		return 0, ErrNotEligible
	}
	p, release := o.acquire(doc)
	defer release()

	text := p.Value()
	byPath := groupByPath(text)
	started := 0
	for _, ref := range links.Extract(text) {
		if ref.IsRemote() {
			if !o.settings.WorkOnNetwork || links.HasBlockedDomain(ref.Path, o.settings.NetworkBlockList()) {
				continue
			}
			o.uploadNetwork(ctx, doc, byPath[ref.Path])
			started++
			continue
		}

		if o.uploadLocal(ctx, doc, byPath[ref.Path]) {
			started++
		}
	}

	log.Info().Int("jobs", started).Msg("Uploading images of document")
	return started, nil
}

// uploadLocal uploads the vault file behind refs, which share one path
func (o *Orchestrator) uploadLocal(ctx context.Context, doc document.Document, refs []links.Reference) bool {
	ref := refs[0]
	if o.vault == nil {
		log.Debug().Str("path", ref.Path).Msg("No vault configured, skipping local image")
		return false
	}

	rel, err := o.vault.Resolve(ref.Path)
	if err != nil {
		if errors.Is(err, vault.ErrNotFound) {
			o.notifier.Notify(localize(o.settings.Language, msgLocalNotFound, ref.Path))
		}
		log.Warn().Err(err).Str("path", ref.Path).Msg("Failed to resolve local image")
		return false
	}

	j := o.rewriteJob(refs, &encoder.FileSource{Vault: o.vault, Path: rel})
	j.path = rel
	j.name = path.Base(rel)
	j.done = func(p *document.Patcher, url string) {
		o.notifier.Notify(localize(o.settings.Language, msgLocalUploaded, ref.Path))
		if !o.settings.DeleteSourceOnReplace {
			return
		}
		if o.referencesFile(p.Value(), rel) {
			log.Info().Str("path", rel).Msg("Source still referenced, keeping it")
			return
		}
		if err := o.vault.Trash(rel); err != nil {
			log.Warn().Err(err).Str("path", rel).Msg("Failed to move source to trash")
		}
	}
	o.start(ctx, doc, j)
	return true
}

// referencesFile reports whether a local reference of text resolves to rel
func (o *Orchestrator) referencesFile(text, rel string) bool {
	for _, ref := range links.Local(links.Scan(text)) {
		if r, err := o.vault.Resolve(ref.Path); err == nil && r == rel {
			return true
		}
	}
	return false
}

// DeleteUploaded deletes the server-hosted images referenced in the current
// selection of doc. On success their source text is removed from the document
// and the cache is cleared. On failure the document is left untouched.
func (o *Orchestrator) DeleteUploaded(ctx context.Context, doc document.Document) (int, error) {
	if !o.Eligible(doc) {
		o.notifier.Notify(localize(o.settings.Language, msgEnableFirst))
		return 0, ErrNotEligible
	}
	p, release := o.acquire(doc)
	defer release()

	var selection string
	p.Do(func(d document.Document) {
		selection = d.Selection()
	})

	res, err := o.gateway.Delete(ctx, selection)
	if err != nil {
		msg := localize(o.settings.Language, msgDeleteFailed)
		var delErr *uploader.DeleteError
		if errors.As(err, &delErr) && delErr.Message != "" {
			msg = delErr.Message
		}
		o.notifier.Notify(msg)
		return 0, fmt.Errorf("failed to delete images: %w", err)
	}
	msg := res.Message
	if msg == "" {
		msg = localize(o.settings.Language, msgDeleteSucceeded)
	}
	if len(res.Sources) == 0 {
		o.notifier.Notify(localize(o.settings.Language, msgDeleted, msg, 0))
		return 0, nil
	}

	for _, src := range res.Sources {
		p.ReplaceAll(src, "")
	}
	o.cache.Clear()

	o.notifier.Notify(localize(o.settings.Language, msgDeleted, msg, len(res.Sources)))
	log.Info().Int("count", len(res.Sources)).Msg("Deleted uploaded images")
	return len(res.Sources), nil
}
