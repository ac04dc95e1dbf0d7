package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/diging/vogon-web-sub000/internal/logging"
	"github.com/diging/vogon-web-sub000/pkg/database"
	"github.com/diging/vogon-web-sub000/pkg/model"
	"github.com/diging/vogon-web-sub000/pkg/relations"
	"github.com/diging/vogon-web-sub000/pkg/template"
)

type Server struct {
	db       *database.DB
	engine   *relations.Engine
	logger   *slog.Logger
	validate *validator.Validate
}

// NewServer creates the MCP relation-template server
func NewServer(db *database.DB, engine *relations.Engine) *Server {
	return NewServerWithLogger(db, engine, slog.Default())
}

func NewServerWithLogger(db *database.DB, engine *relations.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{db: db, engine: engine, logger: logger, validate: newValidator()}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.db.Close()
}

// RegisterTools registers all MCP tools with the server
func (s *Server) RegisterTools(mcpServer *mcp.Server) {
	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "validate_template",
			Description: "Check a relation template payload without saving it",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, params TemplateParams) (*mcp.CallToolResult, any, error) {
			return s.handleValidateTemplate(ctx, params)
		},
	)

	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "create_template",
			Description: "Validate and save a relation template with its parts",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, params TemplateParams) (*mcp.CallToolResult, any, error) {
			return s.handleCreateTemplate(ctx, params)
		},
	)

	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "get_template",
			Description: "Get a relation template with its parts",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, params IDParams) (*mcp.CallToolResult, any, error) {
			return s.handleGetTemplate(ctx, params)
		},
	)

	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "list_templates",
			Description: "List relation templates, optionally filtered by name or description",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, params ListTemplatesParams) (*mcp.CallToolResult, any, error) {
			return s.handleListTemplates(ctx, params)
		},
	)

	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "template_fields",
			Description: "List the slots an annotator must fill in to use a template",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, params IDParams) (*mcp.CallToolResult, any, error) {
			return s.handleTemplateFields(ctx, params)
		},
	)

	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "delete_template",
			Description: "Delete a relation template that no relation set was built from",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, params IDParams) (*mcp.CallToolResult, any, error) {
			return s.handleDeleteTemplate(ctx, params)
		},
	)

	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "create_concept_type",
			Description: "Create a concept type",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, params CreateConceptTypeParams) (*mcp.CallToolResult, any, error) {
			return s.handleCreateConceptType(ctx, params)
		},
	)

	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "create_concept",
			Description: "Create a concept, optionally with a concept type",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, params CreateConceptParams) (*mcp.CallToolResult, any, error) {
			return s.handleCreateConcept(ctx, params)
		},
	)

	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "get_concept",
			Description: "Get a concept by id",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, params IDParams) (*mcp.CallToolResult, any, error) {
			return s.handleGetConcept(ctx, params)
		},
	)

	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "search_concepts",
			Description: "Search concepts by label or uri",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, params SearchConceptsParams) (*mcp.CallToolResult, any, error) {
			return s.handleSearchConcepts(ctx, params)
		},
	)

	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "create_appellation",
			Description: "Record text evidence that refers to a concept",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, params CreateAppellationParams) (*mcp.CallToolResult, any, error) {
			return s.handleCreateAppellation(ctx, params)
		},
	)

	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "create_date_appellation",
			Description: "Record a date found in a text",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, params CreateDateAppellationParams) (*mcp.CallToolResult, any, error) {
			return s.handleCreateDateAppellation(ctx, params)
		},
	)

	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "create_relationset",
			Description: "Instantiate a relation template into a relation set",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, params CreateRelationSetParams) (*mcp.CallToolResult, any, error) {
			return s.handleCreateRelationSet(ctx, params)
		},
	)

	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "get_relationset",
			Description: "Get a relation set with its relations and terminal concepts",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, params IDParams) (*mcp.CallToolResult, any, error) {
			return s.handleGetRelationSet(ctx, params)
		},
	)

	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "list_relationsets",
			Description: "List relation sets, newest first",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, params ListRelationSetsParams) (*mcp.CallToolResult, any, error) {
			return s.handleListRelationSets(ctx, params)
		},
	)

	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "submit_relationset",
			Description: "Mark a relation set as submitted",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, params IDParams) (*mcp.CallToolResult, any, error) {
			return s.handleSubmitRelationSet(ctx, params)
		},
	)
}

func (s *Server) handleValidateTemplate(ctx context.Context, params TemplateParams) (*mcp.CallToolResult, any, error) {
	if err := validateParams(s.validate, params); err != nil {
		return s.toolError(ctx, "validate template", err)
	}
	if err := s.engine.ValidateTemplate(params.toTemplate()); err != nil {
		return s.toolError(ctx, "validate template", err)
	}
	return jsonResult(map[string]bool{"valid": true})
}

func (s *Server) handleCreateTemplate(ctx context.Context, params TemplateParams) (*mcp.CallToolResult, any, error) {
	ctx = withCreator(ctx, params.CreatedBy)
	if err := validateParams(s.validate, params); err != nil {
		return s.toolError(ctx, "create template", err)
	}
	created, err := s.engine.CreateTemplate(ctx, params.toTemplate())
	if err != nil {
		return s.toolError(ctx, "create template", err)
	}
	tmpl, err := s.db.GetTemplate(ctx, created.ID)
	if err != nil {
		return s.toolError(ctx, "create template", err)
	}
	return jsonResult(tmpl)
}

func (s *Server) handleGetTemplate(ctx context.Context, params IDParams) (*mcp.CallToolResult, any, error) {
	if err := validateParams(s.validate, params); err != nil {
		return s.toolError(ctx, "get template", err)
	}
	tmpl, err := s.db.GetTemplate(ctx, params.ID)
	if err != nil {
		return s.toolError(ctx, "get template", err)
	}
	return jsonResult(tmpl)
}

func (s *Server) handleListTemplates(ctx context.Context, params ListTemplatesParams) (*mcp.CallToolResult, any, error) {
	if err := validateParams(s.validate, params); err != nil {
		return s.toolError(ctx, "list templates", err)
	}
	templates, err := s.db.ListTemplates(ctx, params.Query)
	if err != nil {
		return s.toolError(ctx, "list templates", err)
	}
	return jsonResult(templates)
}

func (s *Server) handleTemplateFields(ctx context.Context, params IDParams) (*mcp.CallToolResult, any, error) {
	if err := validateParams(s.validate, params); err != nil {
		return s.toolError(ctx, "get template fields", err)
	}
	tmpl, err := s.db.GetTemplate(ctx, params.ID)
	if err != nil {
		return s.toolError(ctx, "get template fields", err)
	}
	return jsonResult(template.Fields(tmpl))
}

func (s *Server) handleDeleteTemplate(ctx context.Context, params IDParams) (*mcp.CallToolResult, any, error) {
	if err := validateParams(s.validate, params); err != nil {
		return s.toolError(ctx, "delete template", err)
	}
	if err := s.db.DeleteTemplate(ctx, params.ID); err != nil {
		return s.toolError(ctx, "delete template", err)
	}
	return textResult("Template deleted successfully"), nil, nil
}

func (s *Server) handleCreateConceptType(ctx context.Context, params CreateConceptTypeParams) (*mcp.CallToolResult, any, error) {
	if err := validateParams(s.validate, params); err != nil {
		return s.toolError(ctx, "create concept type", err)
	}
	ct, err := s.db.CreateConceptType(ctx, params.URI, params.Label)
	if err != nil {
		return s.toolError(ctx, "create concept type", err)
	}
	return jsonResult(ct)
}

func (s *Server) handleCreateConcept(ctx context.Context, params CreateConceptParams) (*mcp.CallToolResult, any, error) {
	if err := validateParams(s.validate, params); err != nil {
		return s.toolError(ctx, "create concept", err)
	}
	c, err := s.db.CreateConcept(ctx, params.URI, params.Label, params.TypeID)
	if err != nil {
		return s.toolError(ctx, "create concept", err)
	}
	return jsonResult(c)
}

func (s *Server) handleGetConcept(ctx context.Context, params IDParams) (*mcp.CallToolResult, any, error) {
	if err := validateParams(s.validate, params); err != nil {
		return s.toolError(ctx, "get concept", err)
	}
	c, err := s.db.GetConcept(ctx, params.ID)
	if err != nil {
		return s.toolError(ctx, "get concept", err)
	}
	return jsonResult(c)
}

func (s *Server) handleSearchConcepts(ctx context.Context, params SearchConceptsParams) (*mcp.CallToolResult, any, error) {
	if err := validateParams(s.validate, params); err != nil {
		return s.toolError(ctx, "search concepts", err)
	}
	concepts, err := s.db.SearchConcepts(ctx, database.ConceptQuery{
		Text:   params.Query,
		TypeID: params.TypeID,
		Limit:  params.Limit,
	})
	if err != nil {
		return s.toolError(ctx, "search concepts", err)
	}
	return jsonResult(concepts)
}

func (s *Server) handleCreateAppellation(ctx context.Context, params CreateAppellationParams) (*mcp.CallToolResult, any, error) {
	ctx = withCreator(ctx, params.CreatedBy)
	if err := validateParams(s.validate, params); err != nil {
		return s.toolError(ctx, "create appellation", err)
	}
	a := &model.Appellation{
		InterpretationID: params.InterpretationID,
		AsPredicate:      params.AsPredicate,
		TokenIDs:         params.TokenIDs,
		StringRep:        params.StringRep,
		CreatedBy:        params.CreatedBy,
		TextID:           params.OccursIn,
		ProjectID:        params.Project,
	}
	if err := s.db.CreateAppellation(ctx, a, textPosition(params.Position)); err != nil {
		return s.toolError(ctx, "create appellation", err)
	}
	return jsonResult(a)
}

func (s *Server) handleCreateDateAppellation(ctx context.Context, params CreateDateAppellationParams) (*mcp.CallToolResult, any, error) {
	ctx = withCreator(ctx, params.CreatedBy)
	if err := validateParams(s.validate, params); err != nil {
		return s.toolError(ctx, "create date appellation", err)
	}
	if params.Day != 0 && params.Month == 0 {
		return s.toolError(ctx, "create date appellation", &ValidationError{Message: "day requires a month"})
	}
	d := &model.DateAppellation{
		Year:      params.Year,
		Month:     params.Month,
		Day:       params.Day,
		StringRep: params.StringRep,
		CreatedBy: params.CreatedBy,
		TextID:    params.OccursIn,
		ProjectID: params.Project,
	}
	if d.StringRep == "" {
		d.StringRep = d.DateRepresentation()
	}
	if err := s.db.CreateDateAppellation(ctx, d, textPosition(params.Position)); err != nil {
		return s.toolError(ctx, "create date appellation", err)
	}
	return jsonResult(d)
}

func (s *Server) handleCreateRelationSet(ctx context.Context, params CreateRelationSetParams) (*mcp.CallToolResult, any, error) {
	ctx = withCreator(ctx, params.CreatedBy)
	if err := validateParams(s.validate, params); err != nil {
		return s.toolError(ctx, "create relation set", err)
	}
	set, err := s.engine.CreateRelationSet(ctx, params.TemplateID, params.input(), params.CreatedBy)
	if err != nil {
		return s.toolError(ctx, "create relation set", err)
	}
	return jsonResult(set)
}

func (s *Server) handleGetRelationSet(ctx context.Context, params IDParams) (*mcp.CallToolResult, any, error) {
	if err := validateParams(s.validate, params); err != nil {
		return s.toolError(ctx, "get relation set", err)
	}
	set, err := s.db.GetRelationSet(ctx, params.ID)
	if err != nil {
		return s.toolError(ctx, "get relation set", err)
	}
	return jsonResult(set)
}

func (s *Server) handleListRelationSets(ctx context.Context, params ListRelationSetsParams) (*mcp.CallToolResult, any, error) {
	sets, err := s.db.ListRelationSets(ctx, database.RelationSetFilter{
		TextID:    params.OccursIn,
		ProjectID: params.Project,
		Submitted: params.Submitted,
	})
	if err != nil {
		return s.toolError(ctx, "list relation sets", err)
	}
	return jsonResult(sets)
}

func (s *Server) handleSubmitRelationSet(ctx context.Context, params IDParams) (*mcp.CallToolResult, any, error) {
	if err := validateParams(s.validate, params); err != nil {
		return s.toolError(ctx, "submit relation set", err)
	}
	set, err := s.db.SubmitRelationSet(ctx, params.ID)
	if err != nil {
		return s.toolError(ctx, "submit relation set", err)
	}
	return jsonResult(set)
}

func textPosition(in *relations.PositionInput) *model.TextPosition {
	if in == nil {
		return nil
	}
	return &model.TextPosition{
		PositionType:  in.PositionType,
		StartOffset:   in.StartOffset,
		EndOffset:     in.EndOffset,
		PositionValue: in.PositionValue,
	}
}

// ToolError is the body of a tool result that reports a client error.
type ToolError struct {
	Error   string             `json:"error"`
	Missing []template.SlotKey `json:"missing,omitempty"`
}

// toolError turns client errors into an error result the model can read and
// correct. Anything else is returned as a protocol error.
func (s *Server) toolError(ctx context.Context, op string, err error) (*mcp.CallToolResult, any, error) {
	logger := logging.LoggerWithContext(ctx, s.logger)

	var (
		verr *ValidationError
		derr *relations.InvalidDataError
	)
	body := ToolError{Error: err.Error()}
	switch {
	case errors.As(err, &derr):
		body.Missing = derr.Missing
	case errors.As(err, &verr),
		template.IsInvalidTemplate(err),
		errors.Is(err, database.ErrNotFound),
		errors.Is(err, database.ErrTemplateInUse):
	default:
		logger.Error("tool failed", slog.String("op", op), slog.String("error", err.Error()))
		return nil, nil, fmt.Errorf("failed to %s: %w", op, err)
	}

	logger.Debug("tool rejected request", slog.String("op", op), slog.String("error", err.Error()))
	res, _, _ := jsonResult(body)
	res.IsError = true
	return res, nil, nil
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	jsonData, _ := json.MarshalIndent(v, "", "  ")
	return textResult(string(jsonData)), nil, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// withCreator tags ctx with the acting user so every log line written while
// handling the call carries it.
func withCreator(ctx context.Context, createdBy int64) context.Context {
	if createdBy <= 0 {
		return ctx
	}
	return logging.WithUserID(ctx, strconv.FormatInt(createdBy, 10))
}
