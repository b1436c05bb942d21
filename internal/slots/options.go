package slots

import (
	"fmt"
	"os"
	"path/filepath"
)

// GenerateOption configures GenerateOptions.  Options are applied in order.
type GenerateOption func(*GenerateOptions) error

// WithArgs applies every argument that is a GenerateOption.  It lets
// subcommands pass options through their variadic Execute arguments.
func WithArgs(args ...any) GenerateOption {
	return func(opts *GenerateOptions) error {
		for _, arg := range args {
			opt, ok := arg.(GenerateOption)
			if !ok {
				return fmt.Errorf("unexpected argument of type %T", arg)
			}
			if err := opt(opts); err != nil {
				return err
			}
		}
		return nil
	}
}

// WithDir sets the directory packages are loaded from.
func WithDir(dir string) GenerateOption {
	return func(opts *GenerateOptions) error {
		opts.Dir = dir
		return nil
	}
}

// WithEnv sets the environment of the build system's query tool.
func WithEnv(env []string) GenerateOption {
	return func(opts *GenerateOptions) error {
		opts.Env = env
		return nil
	}
}

// WithWDFallback sets Dir to the working directory unless already set.
func WithWDFallback() GenerateOption {
	return func(opts *GenerateOptions) error {
		if opts.Dir != "" {
			return nil
		}
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		opts.Dir = wd
		return nil
	}
}

// WithHeaderFile reads the header inserted at the start of each generated
// file.  A relative path is resolved against Dir.  An empty path is ignored.
func WithHeaderFile(path string) GenerateOption {
	return func(opts *GenerateOptions) error {
		if path == "" {
			return nil
		}
		if !filepath.IsAbs(path) && opts.Dir != "" {
			path = filepath.Join(opts.Dir, path)
		}
		header, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read header file %q: %w", path, err)
		}
		opts.Header = header
		return nil
	}
}

// WithPrefixFileName sets the prefix of the generated file names.
func WithPrefixFileName(prefix string) GenerateOption {
	return func(opts *GenerateOptions) error {
		opts.PrefixOutputFile = prefix
		return nil
	}
}

// WithTags appends build tags to the default mockfnstub tag.
func WithTags(tags string) GenerateOption {
	return func(opts *GenerateOptions) error {
		opts.Tags = tags
		return nil
	}
}
