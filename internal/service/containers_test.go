package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DanielTwine/dloperOS/internal/apperr"
	"github.com/DanielTwine/dloperOS/internal/containers"
	"github.com/DanielTwine/dloperOS/internal/models"
)

type fakeRuntime struct {
	listFn func(ctx context.Context) ([]models.Container, error)
	actFn  func(ctx context.Context, id, action string) (*models.Container, error)
	runFn  func(ctx context.Context, spec containers.RunSpec) (*models.Container, error)
}

func (f *fakeRuntime) List(ctx context.Context) ([]models.Container, error) { return f.listFn(ctx) }
func (f *fakeRuntime) Act(ctx context.Context, id, action string) (*models.Container, error) {
	return f.actFn(ctx, id, action)
}
func (f *fakeRuntime) Run(ctx context.Context, spec containers.RunSpec) (*models.Container, error) {
	return f.runFn(ctx, spec)
}

func TestContainerList_Unavailable(t *testing.T) {
	rt := &fakeRuntime{listFn: func(context.Context) ([]models.Container, error) {
		return nil, containers.ErrUnavailable
	}}
	list, err := NewContainerService(rt, zap.NewNop()).List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestContainerOperate(t *testing.T) {
	var gotID, gotAction string
	rt := &fakeRuntime{actFn: func(_ context.Context, id, action string) (*models.Container, error) {
		gotID, gotAction = id, action
		return &models.Container{ID: id, Status: "running"}, nil
	}}
	svc := NewContainerService(rt, zap.NewNop())
	ctx := context.Background()

	c, err := svc.Operate(ctx, "blog", "start")
	require.NoError(t, err)
	assert.Equal(t, "running", c.Status)
	assert.Equal(t, "blog", gotID)
	assert.Equal(t, "start", gotAction)

	_, err = svc.Operate(ctx, "blog", "kill")
	assert.ErrorIs(t, err, ErrUnsupportedAction)
	_, err = svc.Operate(ctx, "--help", "stop")
	assert.ErrorIs(t, err, ErrInvalidContainer)

	rt.actFn = func(context.Context, string, string) (*models.Container, error) {
		return nil, containers.ErrUnavailable
	}
	_, err = svc.Operate(ctx, "blog", "stop")
	assert.Equal(t, 503, apperr.Status(err))
}

func TestContainerTemplates(t *testing.T) {
	var spec containers.RunSpec
	rt := &fakeRuntime{runFn: func(_ context.Context, s containers.RunSpec) (*models.Container, error) {
		spec = s
		return &models.Container{ID: "abc", Name: s.Name, Status: "running"}, nil
	}}
	svc := NewContainerService(rt, zap.NewNop())
	ctx := context.Background()

	_, err := svc.CreateFromTemplate(ctx, TemplateRequest{Template: "wordpress", Name: "site"})
	require.NoError(t, err)
	assert.Equal(t, "wordpress:latest", spec.Image)
	assert.Equal(t, map[string]int{"80/tcp": 8081}, spec.Ports)

	_, err = svc.CreateFromTemplate(ctx, TemplateRequest{Template: "wordpress", Image: "evil:1"})
	require.NoError(t, err)
	assert.Equal(t, "wordpress:latest", spec.Image, "wordpress pins its image")

	_, err = svc.CreateFromTemplate(ctx, TemplateRequest{Template: "node"})
	require.NoError(t, err)
	assert.Equal(t, "node:20", spec.Image)
	assert.Equal(t, []string{"npm", "start"}, spec.Command)

	_, err = svc.CreateFromTemplate(ctx, TemplateRequest{Template: "db", Image: "postgres:16", Ports: []string{"5432:15432"}})
	require.NoError(t, err)
	assert.Equal(t, "postgres:16", spec.Image)
	assert.Equal(t, map[string]string{"POSTGRES_PASSWORD": "dloper"}, spec.Env)
	assert.Equal(t, map[string]int{"5432/tcp": 15432}, spec.Ports)

	_, err = svc.CreateFromTemplate(ctx, TemplateRequest{Template: "db", Env: map[string]string{"POSTGRES_PASSWORD": "s3cret"}})
	require.NoError(t, err)
	assert.Equal(t, "s3cret", spec.Env["POSTGRES_PASSWORD"])

	for _, req := range []TemplateRequest{
		{Template: "mysql"},
		{Template: "db", Ports: []string{"5432"}},
		{Template: "db", Ports: []string{"abc:1"}},
		{Template: "db", Ports: []string{"5432:70000"}},
		{Template: "node", Name: "-rm"},
		{Template: "node", Image: "--privileged"},
	} {
		_, err = svc.CreateFromTemplate(ctx, req)
		assert.ErrorIs(t, err, apperr.ErrValidation, "%+v", req)
	}
}
