package services

import (
	"context"
	"errors"

	"github.com/vicodes/process-flow-canvas-dream/pkg/models"
)

// ErrNotFound is returned when the backend has no such process or instance.
var ErrNotFound = errors.New("not found")

// Backend is the orchestration backend as seen by the dashboard.
type Backend interface {
	// ListProcessDefinitions returns every deployed process definition.
	ListProcessDefinitions(ctx context.Context) ([]models.ProcessDefinition, error)
	// ListProcessInstances returns one page of instances. Pages are zero based.
	ListProcessInstances(ctx context.Context, page, size int) (*models.Page[models.ProcessInstance], error)
	// ListAllProcessInstances walks every page.
	ListAllProcessInstances(ctx context.Context) ([]models.ProcessInstance, error)
	// GetProcessInstance returns one instance with its diagram, variables and history.
	GetProcessInstance(ctx context.Context, id string) (*models.ProcessInstance, error)
	// GetProcessDefinitionXML returns the BPMN XML of a definition.
	GetProcessDefinitionXML(ctx context.Context, id string) (string, error)
}

type tokenKey struct{}

// WithToken attaches a bearer token that outgoing backend calls forward.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the bearer token attached by WithToken.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}
