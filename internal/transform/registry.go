package transform

import (
	"context"
	"errors"
	"fmt"

	"a11y/internal/llm"
	"a11y/internal/media"
	"a11y/internal/storage"
	"a11y/pkg/prompts"
)

// Executor runs one transform request.
type Executor interface {
	Execute(ctx context.Context, req Request) (*Result, error)
}

var _ Executor = (*Registry)(nil)

// Registry resolves transform kinds and runs them against an injected
// remote client. Specs are fixed at construction and safe to share.
type Registry struct {
	client  llm.Client
	prompts *prompts.Prompts
	store   storage.Store
	specs   map[Kind]*Spec
}

func NewRegistry(client llm.Client, p *prompts.Prompts, store storage.Store, specs []Spec) (*Registry, error) {
	if client == nil {
		return nil, errors.New("registry needs a remote client")
	}
	if p == nil {
		return nil, errors.New("registry needs prompts")
	}

	r := &Registry{
		client:  client,
		prompts: p,
		store:   store,
		specs:   make(map[Kind]*Spec, len(specs)),
	}

	for i := range specs {
		s := specs[i]
		if _, dup := r.specs[s.Kind]; dup {
			return nil, fmt.Errorf("transform %q registered twice", s.Kind)
		}
		if !p.Has(string(s.Kind)) {
			return nil, fmt.Errorf("no prompt template for transform %q", s.Kind)
		}
		if s.Output == OutputBinaryFile && store == nil {
			return nil, fmt.Errorf("transform %q writes files but no store was given", s.Kind)
		}
		r.specs[s.Kind] = &s
	}

	return r, nil
}

// Spec returns a copy of the registered spec for kind.
func (r *Registry) Spec(kind Kind) (Spec, bool) {
	s, ok := r.specs[kind]
	if !ok {
		return Spec{}, false
	}
	return *s, true
}

// Execute validates req, calls the remote model once and returns the parsed
// result. Files are written only after the reply parsed cleanly.
func (r *Registry) Execute(ctx context.Context, req Request) (*Result, error) {
	spec, ok := r.specs[req.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransform, req.Kind)
	}

	values, err := spec.validate(req)
	if err != nil {
		return nil, err
	}

	call, err := r.buildCall(spec, values)
	if err != nil {
		return nil, err
	}

	reply, err := r.client.Invoke(ctx, call)
	if err != nil {
		return nil, remoteError(spec.Kind, err)
	}
	if reply == nil {
		return nil, llm.Malformed(string(spec.Kind), "no reply")
	}

	out, err := spec.parse(reply.Body, values)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Kind:   spec.Kind,
		Output: spec.Output,
		Model:  call.Model,
		Fields: out.fields,
		Text:   out.text,
	}

	if spec.Output == OutputBinaryFile {
		ref, err := r.store.Store(ctx, out.data, spec.Artifact.Category, basename(spec, req), spec.Artifact.Ext)
		if err != nil {
			return nil, fmt.Errorf("store %s output: %w", spec.Kind, err)
		}
		result.Artifact = &ref
	}

	return result, nil
}

func (r *Registry) buildCall(spec *Spec, values map[string]any) (*llm.Call, error) {
	data := make(map[string]any, len(values))
	var images []llm.Part

	for _, f := range spec.Inputs {
		v, ok := values[f.Name]
		if !ok {
			continue
		}
		if f.Type != InputImage {
			data[f.Name] = v
			continue
		}

		img := v.(media.Image)
		url, err := media.EncodeImage(img.Data, img.MIME())
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", f.Name, err)
		}
		images = append(images, llm.ImagePart(url))
	}

	system, user, err := r.prompts.Render(string(spec.Kind), data)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	call := &llm.Call{
		Model:        spec.Model,
		Format:       spec.Format,
		Voice:        spec.Voice,
		AudioFormat:  spec.Artifact.Ext,
		ImageSize:    spec.ImageSize,
		ImageQuality: spec.ImageQuality,
	}
	if spec.Format == llm.FormatImage {
		call.AudioFormat = ""
		call.ImageFormat = spec.Artifact.Ext
	}
	if v, ok := values["voice"].(string); ok {
		call.Voice = v
	}

	if system != "" {
		call.Messages = append(call.Messages, llm.Message{
			Role:  llm.RoleSystem,
			Parts: []llm.Part{llm.TextPart(system)},
		})
	}
	userParts := append([]llm.Part{llm.TextPart(user)}, images...)
	call.Messages = append(call.Messages, llm.Message{Role: llm.RoleUser, Parts: userParts})

	return call, nil
}

func basename(spec *Spec, req Request) string {
	if req.Basename != "" {
		if name := storage.SanitizeBasename(req.Basename); name != "" {
			return name
		}
	}
	return spec.Artifact.Basename
}

// remoteError keeps classified client errors as they are and marks anything
// else as unavailable.
func remoteError(kind Kind, err error) error {
	if errors.Is(err, ErrRemoteUnavailable) || errors.Is(err, ErrMalformedResponse) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", kind, ErrRemoteUnavailable, err)
}
