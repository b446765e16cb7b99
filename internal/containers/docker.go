// Package containers drives the Docker CLI.
package containers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/DanielTwine/dloperOS/internal/apperr"
	"github.com/DanielTwine/dloperOS/internal/models"
)

// DefaultTimeout bounds every docker invocation.
const DefaultTimeout = 30 * time.Second

var (
	ErrUnavailable       = apperr.New(apperr.ErrUnavailable, "Docker not available")
	ErrContainerNotFound = apperr.New(apperr.ErrNotFound, "Container not found")
)

// RunSpec describes a container to create with `docker run -d`.
type RunSpec struct {
	Name    string
	Image   string
	Env     map[string]string
	// Ports maps container port ("80/tcp") to host port.
	Ports   map[string]int
	Command []string
}

// Runner executes name with args and returns its stdout and stderr.
type Runner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// DockerCLI implements the runtime operations by shelling out to docker.
type DockerCLI struct {
	bin      string
	timeout  time.Duration
	run      Runner
	lookPath func(string) (string, error)
}

func NewDockerCLI() *DockerCLI {
	return &DockerCLI{bin: "docker", timeout: DefaultTimeout, run: execRunner, lookPath: exec.LookPath}
}

// WithRunner replaces process execution, mainly for tests.
func (d *DockerCLI) WithRunner(r Runner) *DockerCLI {
	d.run = r
	d.lookPath = func(name string) (string, error) { return name, nil }
	return d
}

func (d *DockerCLI) exec(ctx context.Context, args ...string) ([]byte, error) {
	bin, err := d.lookPath(d.bin)
	if err != nil {
		return nil, ErrUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	stdout, stderr, err := d.run(ctx, bin, args...)
	if err == nil {
		return stdout, nil
	}
	msg := strings.TrimSpace(string(stderr))
	switch {
	case strings.Contains(msg, "No such container"), strings.Contains(msg, "No such object"):
		return nil, ErrContainerNotFound
	case strings.Contains(msg, "Cannot connect to the Docker daemon"),
		strings.Contains(msg, "permission denied"):
		return nil, apperr.Wrap(apperr.ErrUnavailable, "Docker not available", errors.New(msg))
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return nil, fmt.Errorf("docker %s: timed out after %s", args[0], d.timeout)
	}
	return nil, fmt.Errorf("docker %s: %w: %s", args[0], err, msg)
}

type psRow struct {
	ID     string `json:"ID"`
	Names  string `json:"Names"`
	Image  string `json:"Image"`
	State  string `json:"State"`
	Status string `json:"Status"`
	Ports  string `json:"Ports"`
}

// List returns every container, running or not.
func (d *DockerCLI) List(ctx context.Context) ([]models.Container, error) {
	out, err := d.exec(ctx, "ps", "-a", "--format", "{{json .}}")
	if err != nil {
		return nil, err
	}
	list := []models.Container{}
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var row psRow
		if err := json.Unmarshal(line, &row); err != nil {
			return nil, fmt.Errorf("parse docker ps: %w", err)
		}
		list = append(list, models.Container{
			ID:      row.ID,
			Name:    row.Names,
			Image:   row.Image,
			Status:  row.State,
			Details: row.Status,
			Ports:   row.Ports,
		})
	}
	return list, sc.Err()
}

type inspectRow struct {
	ID    string `json:"Id"`
	Name  string `json:"Name"`
	State struct {
		Status string `json:"Status"`
	} `json:"State"`
	Config struct {
		Image string `json:"Image"`
	} `json:"Config"`
}

// Inspect describes a single container.
func (d *DockerCLI) Inspect(ctx context.Context, id string) (*models.Container, error) {
	out, err := d.exec(ctx, "inspect", "--type", "container", "--format", "{{json .}}", id)
	if err != nil {
		return nil, err
	}
	var row inspectRow
	if err := json.Unmarshal(bytes.TrimSpace(out), &row); err != nil {
		return nil, fmt.Errorf("parse docker inspect: %w", err)
	}
	return &models.Container{
		ID:     shortID(row.ID),
		Name:   strings.TrimPrefix(row.Name, "/"),
		Image:  row.Config.Image,
		Status: row.State.Status,
	}, nil
}

// Act runs start, stop or restart on id and returns its new state.
func (d *DockerCLI) Act(ctx context.Context, id, action string) (*models.Container, error) {
	if _, err := d.exec(ctx, action, id); err != nil {
		return nil, err
	}
	return d.Inspect(ctx, id)
}

// Run creates and starts a detached container.
func (d *DockerCLI) Run(ctx context.Context, spec RunSpec) (*models.Container, error) {
	out, err := d.exec(ctx, runArgs(spec)...)
	if err != nil {
		return nil, err
	}
	id := strings.TrimSpace(string(out))
	if id == "" {
		return nil, errors.New("docker run: no container id returned")
	}
	return d.Inspect(ctx, id)
}

func runArgs(spec RunSpec) []string {
	args := []string{"run", "-d"}
	if spec.Name != "" {
		args = append(args, "--name", spec.Name)
	}
	keys := make([]string, 0, len(spec.Env))
	for k := range spec.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-e", k+"="+spec.Env[k])
	}
	ports := make([]string, 0, len(spec.Ports))
	for p := range spec.Ports {
		ports = append(ports, p)
	}
	sort.Strings(ports)
	for _, p := range ports {
		args = append(args, "-p", fmt.Sprintf("%d:%s", spec.Ports[p], p))
	}
	args = append(args, spec.Image)
	return append(args, spec.Command...)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
