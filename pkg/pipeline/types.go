package pipeline

// Pipeline is the root object that holds the entire declaration for a Gantry run.
// It's populated by parsing the user's gantry.yaml file.
type Pipeline struct {
	APIVersion string   `yaml:"apiVersion" validate:"required"`
	Kind       string   `yaml:"kind" validate:"required,eq=Pipeline"`
	Metadata   Metadata `yaml:"metadata" validate:"required"`
	Spec       Spec     `yaml:"spec" validate:"required"`
}

// Metadata contains pipeline-level metadata.
type Metadata struct {
	Name        string            `yaml:"name" validate:"required"`
	Description string            `yaml:"description"`
	Labels      map[string]string `yaml:"labels,omitempty"`
}

// Spec contains the ordered stage list and the optional typed backends.
type Spec struct {
	Workdir  string            `yaml:"workdir"`
	Env      map[string]string `yaml:"env,omitempty"`
	Checkout *Checkout         `yaml:"checkout,omitempty"`
	Notify   *Notify           `yaml:"notify,omitempty"`
	Stages   []StageSpec       `yaml:"stages" validate:"required,min=1,dive"`
}

// StageSpec declares one named unit of pipeline work wrapping a single
// external tool invocation. Exactly one of Run or Container must be set.
type StageSpec struct {
	Name      string            `yaml:"name" validate:"required"`
	Run       []string          `yaml:"run,omitempty" validate:"required_without=Container,excluded_with=Container"`
	Container *ContainerAction  `yaml:"container,omitempty"`
	Env       map[string]string `yaml:"env,omitempty"`
	Report    string            `yaml:"report,omitempty"`
	Gate      *Gate             `yaml:"gate,omitempty"`
}

// ContainerAction runs the stage command inside a container image instead
// of on the host.
type ContainerAction struct {
	Image   string   `yaml:"image" validate:"required"`
	Command []string `yaml:"command"`
}

// Gate declares an interactive approval point. A failed gated stage pauses
// the run until an operator decides whether to continue.
type Gate struct {
	Prompt  string `yaml:"prompt" validate:"required"`
	OKLabel string `yaml:"okLabel"`
}

// Checkout declares the implicit first stage: cloning the source repository
// into the working directory before any declared stage runs.
type Checkout struct {
	URL string `yaml:"url" validate:"required,url"`
	Ref string `yaml:"ref"`
}

// Notify configures publishing the run result as a commit status.
type Notify struct {
	Provider string `yaml:"provider" validate:"required,oneof=gitlab"`
	URL      string `yaml:"url" validate:"required,url"`
	Project  string `yaml:"project" validate:"required"`
	SHA      string `yaml:"sha" validate:"required"`
}

// HasGate reports whether the stage declared an approval gate.
func (s *StageSpec) HasGate() bool {
	return s.Gate != nil
}
