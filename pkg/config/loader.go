package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/junction/pkg/engine"
	"github.com/openfroyo/junction/pkg/ident"
	"github.com/openfroyo/junction/pkg/placeholder"
)

// Extensions lists the configuration file extensions the loader reads.
var Extensions = []string{".cue", ".star", ".yaml", ".yml"}

var envNamePattern = regexp.MustCompile(`^[A-Z_][A-Z0-9_]*$`)

// Loader reads processor and topic configuration files. A Loader is safe for
// concurrent use.
type Loader struct {
	cue      *CUEParser
	star     *StarlarkParser
	validate *validator.Validate
}

// NewLoader creates a loader with the built-in CUE schemas.
func NewLoader() *Loader {
	return &Loader{
		cue:      NewCUEParser(NewSchemaRegistry()),
		star:     NewStarlarkParser(DefaultStarlarkTimeout),
		validate: newValidator(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report yaml names in errors
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("envvar", func(fl validator.FieldLevel) bool {
		return envNamePattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}

	return v
}

// LoadProcessors reads every processor configuration in dir. The result is
// sorted by id. Any invalid file fails the whole load.
func (l *Loader) LoadProcessors(dir string) ([]*ProcessorConfig, error) {
	files, err := configFiles(dir)
	if err != nil {
		return nil, err
	}

	configs := make([]*ProcessorConfig, 0, len(files))
	seen := make(map[string]string)
	for _, file := range files {
		cfg, err := l.LoadProcessorFile(file)
		if err != nil {
			return nil, err
		}
		if other, ok := seen[cfg.ID]; ok {
			return nil, engine.NewConfigError(fmt.Sprintf("processor '%s' is defined twice", cfg.ID), nil).
				WithCode(engine.ErrCodeDuplicate).
				WithSubjectString("file", file).
				WithSubjectString("previous", other)
		}
		seen[cfg.ID] = file
		configs = append(configs, cfg)
	}

	slices.SortFunc(configs, func(a, b *ProcessorConfig) int {
		return strings.Compare(a.ID, b.ID)
	})
	return configs, nil
}

// LoadProcessor reads the configuration of one processor realization from
// dir, looking for a file named <id> with one of the Extensions.
func (l *Loader) LoadProcessor(dir, id string) (*ProcessorConfig, error) {
	for _, ext := range Extensions {
		path := filepath.Join(dir, id+ext)
		if _, err := os.Stat(path); err == nil {
			return l.LoadProcessorFile(path)
		}
	}
	return nil, engine.NewNotFoundError(fmt.Sprintf("no configuration for processor '%s'", id), nil).
		WithCode(engine.ErrCodeRealizationNotFound).
		WithSubjectString("dir", dir)
}

// LoadProcessorFile reads and validates one processor configuration file.
// The processor id must match the file name.
func (l *Loader) LoadProcessorFile(path string) (*ProcessorConfig, error) {
	var cfg ProcessorConfig
	if err := l.decodeFile(path, SchemaProcessor, &cfg); err != nil {
		return nil, invalidConfig("invalid processor configuration", path, err)
	}
	cfg.Source = path

	if err := l.validate.Struct(&cfg); err != nil {
		return nil, invalidConfig("invalid processor configuration", path, err)
	}
	if stem := fileStem(path); cfg.ID != stem {
		return nil, invalidConfig("invalid processor configuration", path,
			fmt.Errorf("id '%s' does not match file name '%s'", cfg.ID, stem))
	}
	if err := validateProcessor(&cfg); err != nil {
		return nil, invalidConfig("invalid processor configuration", path, err)
	}

	return &cfg, nil
}

// LoadTopics reads every topic configuration file in dir. The result is
// sorted by id. Any invalid file fails the whole load.
func (l *Loader) LoadTopics(dir string) ([]*TopicConfig, error) {
	files, err := configFiles(dir)
	if err != nil {
		return nil, err
	}

	var topics []*TopicConfig
	seen := make(map[string]string)
	for _, file := range files {
		loaded, err := l.LoadTopicsFile(file)
		if err != nil {
			return nil, err
		}
		for _, topic := range loaded {
			if other, ok := seen[topic.ID]; ok {
				return nil, engine.NewConfigError(fmt.Sprintf("topic '%s' is defined twice", topic.ID), nil).
					WithCode(engine.ErrCodeDuplicate).
					WithSubjectString("file", file).
					WithSubjectString("previous", other)
			}
			seen[topic.ID] = file
			topics = append(topics, topic)
		}
	}

	slices.SortFunc(topics, func(a, b *TopicConfig) int {
		return strings.Compare(a.ID, b.ID)
	})
	return topics, nil
}

// LoadTopicsFile reads and validates one topic configuration file.
func (l *Loader) LoadTopicsFile(path string) ([]*TopicConfig, error) {
	var file TopicsFile
	if err := l.decodeFile(path, SchemaTopics, &file); err != nil {
		return nil, invalidConfig("invalid topic configuration", path, err)
	}
	if err := l.validate.Struct(&file); err != nil {
		return nil, invalidConfig("invalid topic configuration", path, err)
	}

	topics := make([]*TopicConfig, 0, len(file.Topics))
	seen := make(map[string]bool)
	for i := range file.Topics {
		topic := &file.Topics[i]
		topic.Source = path
		if _, err := ident.Parse[ident.Resource](topic.ID); err != nil {
			return nil, invalidConfig("invalid topic configuration", path, err)
		}
		if seen[topic.ID] {
			return nil, engine.NewConfigError(fmt.Sprintf("topic '%s' is defined twice", topic.ID), nil).
				WithCode(engine.ErrCodeDuplicate).
				WithSubjectString("file", path)
		}
		seen[topic.ID] = true
		topics = append(topics, topic)
	}

	return topics, nil
}

// decodeFile reads path into out. CUE files are unified with schema first,
// Starlark files are executed.
func (l *Loader) decodeFile(path, schema string, out any) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return &FileError{File: path, Message: fmt.Sprintf("failed to read file: %v", err)}
	}

	switch filepath.Ext(path) {
	case ".cue":
		content, err = l.cue.Export(path, content, schema)
	case ".star":
		content, err = l.star.Export(path, content)
	}
	if err != nil {
		return err
	}

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileError{File: path, Message: "empty configuration"}
		}
		return &FileError{File: path, Message: err.Error()}
	}
	return nil
}

// configFiles lists the configuration files in dir, sorted by name.
func configFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, engine.NewConfigError("failed to read configuration directory", err).
			WithCode(engine.ErrCodeInvalidConfig).
			WithSubjectString("dir", dir)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if slices.Contains(Extensions, filepath.Ext(entry.Name())) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	slices.Sort(files)
	return files, nil
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func invalidConfig(message, path string, err error) *engine.Error {
	return engine.NewConfigError(message, err).
		WithCode(engine.ErrCodeInvalidConfig).
		WithSubjectString("file", path)
}

// validateProcessor checks what struct tags cannot: identifier patterns,
// uniqueness, parameter references and placeholder usage.
func validateProcessor(cfg *ProcessorConfig) error {
	var errs []error
	check := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	// Descriptive fields and the image take only placeholders fixed for the
	// target.
	stable, all := placeholder.Stable(), placeholder.All()
	allowed := func(field, value string, placeholders []placeholder.Placeholder) {
		if err := placeholder.Validate(value, placeholders); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
		}
	}
	template := func(field, value string) {
		allowed(field, value, stable)
	}

	_, err := ident.Parse[ident.ProcessorRealization](cfg.ID)
	check(err)
	template("label", cfg.Label)
	template("description", cfg.Description)
	template("more-info-url", cfg.MoreInfoURL)

	envVars := make(map[string]string)
	claimEnv := func(name, owner string) {
		if name == "" {
			return
		}
		if other, ok := envVars[name]; ok {
			errs = append(errs, fmt.Errorf("environment variable %s is set by both %s and %s", name, other, owner))
			return
		}
		envVars[name] = owner
	}

	junctions := make(map[string]bool)
	for _, j := range slices.Concat(cfg.InboundJunctions, cfg.OutboundJunctions) {
		_, err := ident.Parse[ident.Junction](j.ID)
		check(err)
		if junctions[j.ID] {
			errs = append(errs, fmt.Errorf("junction '%s' is declared twice", j.ID))
		}
		junctions[j.ID] = true
		if j.Maximum != nil && *j.Maximum < j.Minimum {
			errs = append(errs, fmt.Errorf("junction '%s': maximum %d is less than minimum %d", j.ID, *j.Maximum, j.Minimum))
		}
		template("junction "+j.ID+" label", j.Label)
		template("junction "+j.ID+" description", j.Description)
		claimEnv(j.EnvironmentVariable, "junction "+j.ID)
	}

	parameters := make(map[string]bool)
	for _, p := range cfg.DeploymentParameters {
		_, err := ident.Parse[ident.Parameter](p.ID)
		check(err)
		if parameters[p.ID] {
			errs = append(errs, fmt.Errorf("parameter '%s' is declared twice", p.ID))
		}
		parameters[p.ID] = true
		template("parameter "+p.ID+" label", p.Label)
		template("parameter "+p.ID+" description", p.Description)
		if p.Default != nil {
			switch p.Kind {
			case "boolean":
				if _, err := strconv.ParseBool(*p.Default); err != nil {
					errs = append(errs, fmt.Errorf("parameter '%s': default '%s' is not a boolean", p.ID, *p.Default))
				}
			case "selection":
				if !slices.Contains(p.Options, *p.Default) {
					errs = append(errs, fmt.Errorf("parameter '%s': default '%s' is not one of the options", p.ID, *p.Default))
				}
			}
		}
	}

	profiles := make(map[string]bool)
	for _, p := range cfg.Profiles {
		_, err := ident.Parse[ident.Profile](p.ID)
		check(err)
		if profiles[p.ID] {
			errs = append(errs, fmt.Errorf("profile '%s' is declared twice", p.ID))
		}
		profiles[p.ID] = true
		template("profile "+p.ID+" label", p.Label)
		template("profile "+p.ID+" description", p.Description)
	}

	if svc := cfg.Service; svc != nil {
		template("service image", svc.Image)
		allowed("service user", svc.User, all)
		for _, name := range slices.Sorted(maps.Keys(svc.ExposedPorts)) {
			allowed("exposed port "+name+" vhost", svc.ExposedPorts[name].VHost, all)
		}
		for _, name := range slices.Sorted(maps.Keys(svc.Environment)) {
			value := svc.Environment[name]
			claimEnv(name, "service environment")
			if value.IsParameter() {
				if !parameters[value.Parameter] {
					errs = append(errs, fmt.Errorf("environment variable %s references unknown parameter '%s'", name, value.Parameter))
				}
				continue
			}
			allowed("environment variable "+name, value.Value, all)
		}
	}

	return errors.Join(errs...)
}
