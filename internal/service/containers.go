package service

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/DanielTwine/dloperOS/internal/apperr"
	"github.com/DanielTwine/dloperOS/internal/containers"
	"github.com/DanielTwine/dloperOS/internal/models"
)

var (
	ErrUnsupportedAction = apperr.New(apperr.ErrValidation, "Unsupported action")
	ErrUnknownTemplate   = apperr.New(apperr.ErrValidation, "Unknown template")
	ErrInvalidContainer  = apperr.New(apperr.ErrValidation, "Invalid container id")
	ErrInvalidPort       = apperr.New(apperr.ErrValidation, "Ports must be container:host")
)

// containerRef matches ids and names docker accepts. It also keeps user
// input from being read as a CLI flag.
var containerRef = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]{0,127}$`)

// ContainerRuntime is the container engine behind the panel.
type ContainerRuntime interface {
	List(ctx context.Context) ([]models.Container, error)
	Act(ctx context.Context, id, action string) (*models.Container, error)
	Run(ctx context.Context, spec containers.RunSpec) (*models.Container, error)
}

// TemplateRequest creates a container from a named template. Ports are
// "container:host" pairs and replace the template's mapping.
type TemplateRequest struct {
	Template string            `json:"template"`
	Name     string            `json:"name"`
	Image    string            `json:"image"`
	Ports    []string          `json:"ports"`
	Env      map[string]string `json:"env"`
}

type containerTemplate struct {
	image   string
	command []string
	env     map[string]string
	ports   map[string]int
	// imageOverride allows the request to pick the image.
	imageOverride bool
}

var containerTemplates = map[string]containerTemplate{
	"wordpress": {
		image: "wordpress:latest",
		ports: map[string]int{"80/tcp": 8081},
	},
	"node": {
		image:         "node:20",
		command:       []string{"npm", "start"},
		imageOverride: true,
	},
	"db": {
		image:         "postgres:15",
		env:           map[string]string{"POSTGRES_PASSWORD": "dloper"},
		ports:         map[string]int{"5432/tcp": 5432},
		imageOverride: true,
	},
}

// ContainerService exposes container lifecycle operations.
type ContainerService struct {
	rt  ContainerRuntime
	log *zap.Logger
}

func NewContainerService(rt ContainerRuntime, log *zap.Logger) *ContainerService {
	return &ContainerService{rt: rt, log: log}
}

// List returns an empty list when the runtime is unavailable.
func (s *ContainerService) List(ctx context.Context) ([]models.Container, error) {
	list, err := s.rt.List(ctx)
	if errors.Is(err, apperr.ErrUnavailable) {
		s.log.Debug("container runtime unavailable", zap.Error(err))
		return []models.Container{}, nil
	}
	return list, err
}

// Operate starts, stops or restarts a container.
func (s *ContainerService) Operate(ctx context.Context, id, action string) (*models.Container, error) {
	switch action {
	case "start", "stop", "restart":
	default:
		return nil, ErrUnsupportedAction
	}
	if !containerRef.MatchString(id) {
		return nil, ErrInvalidContainer
	}
	c, err := s.rt.Act(ctx, id, action)
	if err != nil {
		return nil, err
	}
	s.log.Info("container action", zap.String("id", id), zap.String("action", action))
	return c, nil
}

// CreateFromTemplate runs a new detached container.
func (s *ContainerService) CreateFromTemplate(ctx context.Context, req TemplateRequest) (*models.Container, error) {
	spec, err := buildRunSpec(req)
	if err != nil {
		return nil, err
	}
	c, err := s.rt.Run(ctx, spec)
	if err != nil {
		return nil, err
	}
	s.log.Info("container created", zap.String("template", req.Template), zap.String("id", c.ID), zap.String("image", spec.Image))
	return c, nil
}

func buildRunSpec(req TemplateRequest) (containers.RunSpec, error) {
	tpl, ok := containerTemplates[req.Template]
	if !ok {
		return containers.RunSpec{}, ErrUnknownTemplate
	}
	if req.Name != "" && !containerRef.MatchString(req.Name) {
		return containers.RunSpec{}, apperr.New(apperr.ErrValidation, "Invalid container name")
	}
	spec := containers.RunSpec{
		Name:    req.Name,
		Image:   tpl.image,
		Env:     tpl.env,
		Ports:   tpl.ports,
		Command: tpl.command,
	}
	if tpl.imageOverride && req.Image != "" {
		if strings.HasPrefix(req.Image, "-") {
			return containers.RunSpec{}, apperr.New(apperr.ErrValidation, "Invalid image")
		}
		spec.Image = req.Image
	}
	if len(req.Env) > 0 {
		spec.Env = req.Env
	}
	if len(req.Ports) > 0 {
		ports, err := parsePorts(req.Ports)
		if err != nil {
			return containers.RunSpec{}, err
		}
		spec.Ports = ports
	}
	return spec, nil
}

// parsePorts turns "80:8080" into {"80/tcp": 8080}.
func parsePorts(pairs []string) (map[string]int, error) {
	out := make(map[string]int, len(pairs))
	for _, p := range pairs {
		container, host, ok := strings.Cut(p, ":")
		if !ok {
			return nil, ErrInvalidPort
		}
		c, err := strconv.Atoi(container)
		if err != nil || c < 1 || c > 65535 {
			return nil, ErrInvalidPort
		}
		h, err := strconv.Atoi(host)
		if err != nil || h < 1 || h > 65535 {
			return nil, ErrInvalidPort
		}
		out[strconv.Itoa(c)+"/tcp"] = h
	}
	return out, nil
}
