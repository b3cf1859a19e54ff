package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/CHRISCARLON/infra-hex/internal/core/domain"
	"github.com/CHRISCARLON/infra-hex/internal/pkg/classify"
	"github.com/CHRISCARLON/infra-hex/internal/pkg/table"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	hexRowType := graphql.NewObject(graphql.ObjectConfig{
		Name: "HexRow",
		Fields: graphql.Fields{
			"hex_id":     &graphql.Field{Type: graphql.String},
			"pipe_count": &graphql.Field{Type: graphql.Int},
			"class":      &graphql.Field{Type: graphql.Int},
			"color":      &graphql.Field{Type: graphql.String},
			"geometry": &graphql.Field{
				Type:        graphql.String,
				Description: "Cell boundary as a GeoJSON geometry string",
			},
		},
	})

	summaryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "HexSummary",
		Fields: graphql.Fields{
			"zoom":    &graphql.Field{Type: graphql.Int},
			"skipped": &graphql.Field{Type: graphql.Int},
			"total":   &graphql.Field{Type: graphql.Int},
			"breaks":  &graphql.Field{Type: graphql.NewList(graphql.Float)},
			"rows":    &graphql.Field{Type: graphql.NewList(hexRowType)},
		},
	})

	runType := graphql.NewObject(graphql.ObjectConfig{
		Name: "SummaryRun",
		Fields: graphql.Fields{
			"id":           &graphql.Field{Type: graphql.Int},
			"mode":         &graphql.Field{Type: graphql.String},
			"object_id":    &graphql.Field{Type: graphql.Int},
			"zoom":         &graphql.Field{Type: graphql.Int},
			"records":      &graphql.Field{Type: graphql.Int},
			"rows":         &graphql.Field{Type: graphql.Int},
			"skipped":      &graphql.Field{Type: graphql.Int},
			"fetch_errors": &graphql.Field{Type: graphql.Int},
			"error_kind":   &graphql.Field{Type: graphql.String},
			"error":        &graphql.Field{Type: graphql.String},
			"duration_ms":  &graphql.Field{Type: graphql.Float},
			"started_at":   &graphql.Field{Type: graphql.DateTime},
		},
	})

	classArgs := func(args graphql.FieldConfigArgument) graphql.FieldConfigArgument {
		args["classes"] = &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0}
		args["palette"] = &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""}
		return args
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"hexSummary": &graphql.Field{
				Type:        summaryType,
				Description: "Pipe counts per hex cell inside a bounding box",
				Args: classArgs(graphql.FieldConfigArgument{
					"minLat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"minLon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"maxLat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"maxLon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"zoom":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				}),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if err := classArgsValid(p.Args); err != nil {
						return nil, err
					}
					bbox := domain.NewBBox(
						p.Args["minLat"].(float64), p.Args["minLon"].(float64),
						p.Args["maxLat"].(float64), p.Args["maxLon"].(float64),
					)
					summary, err := deps.Summaries.SummarizeByBBox(p.Context, bbox, p.Args["zoom"].(int))
					if err != nil {
						return nil, gqlError(err)
					}
					return summaryResult(summary, p.Args)
				},
			},
			"areaHexSummary": &graphql.Field{
				Type:        summaryType,
				Description: "Pipe counts per hex cell inside a built-up area",
				Args: classArgs(graphql.FieldConfigArgument{
					"objectId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"zoom":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				}),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if err := classArgsValid(p.Args); err != nil {
						return nil, err
					}
					objectID := int64(p.Args["objectId"].(int))
					summary, err := deps.Summaries.SummarizeByArea(p.Context, objectID, p.Args["zoom"].(int))
					if err != nil {
						return nil, gqlError(err)
					}
					return summaryResult(summary, p.Args)
				},
			},
			"runs": &graphql.Field{
				Type:        graphql.NewList(runType),
				Description: "Most recent pipeline runs",
				Args: graphql.FieldConfigArgument{
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Runs == nil {
						return nil, errors.New("run history is not configured")
					}
					limit := p.Args["limit"].(int)
					if limit <= 0 || limit > 500 {
						limit = 20
					}
					runs, _, err := deps.Runs.List(p.Context, 0, limit)
					if err != nil {
						return nil, err
					}
					result := make([]map[string]interface{}, 0, len(runs))
					for _, r := range runs {
						m := map[string]interface{}{
							"id":           r.ID,
							"mode":         string(r.Mode),
							"zoom":         r.Zoom,
							"records":      r.Records,
							"rows":         r.Rows,
							"skipped":      r.Skipped,
							"fetch_errors": r.FetchErrors,
							"error_kind":   r.ErrorKind,
							"error":        r.Error,
							"duration_ms":  float64(r.Duration.Microseconds()) / 1000,
							"started_at":   r.StartedAt,
						}
						if r.ObjectID != nil {
							m["object_id"] = *r.ObjectID
						}
						result = append(result, m)
					}
					return result, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// gqlError prefixes pipeline errors with their kind code.
func gqlError(err error) error {
	if errors.Is(err, domain.ErrInvalidZoom) {
		return fmt.Errorf("bad_request: %w", err)
	}
	if kind := domain.KindOf(err); kind != domain.KindUnknown {
		return fmt.Errorf("%s: %w", kind, err)
	}
	return err
}

func classArgsValid(args map[string]interface{}) error {
	classes, _ := args["classes"].(int)
	if err := classify.ValidateClasses(classes); err != nil {
		return fmt.Errorf("bad_request: %w", err)
	}
	return nil
}

// summaryResult converts a summary into the map shape resolved by HexSummary.
func summaryResult(summary *domain.HexSummaryTable, args map[string]interface{}) (interface{}, error) {
	tbl, err := table.FromSummary(summary)
	if err != nil {
		return nil, err
	}
	if classes, _ := args["classes"].(int); classes > 0 {
		palette, _ := args["palette"].(string)
		tbl.Classify(classes, palette)
	}

	rows := make([]map[string]interface{}, 0, tbl.Len())
	for _, r := range tbl.Rows() {
		geometry, err := json.Marshal(r.Geometry)
		if err != nil {
			return nil, domain.NewError(domain.KindPackaging, "encode geometry", err)
		}
		m := map[string]interface{}{
			"hex_id":     r.HexID,
			"pipe_count": r.PipeCount,
			"geometry":   string(geometry),
		}
		if r.Class != nil {
			m["class"] = *r.Class
			m["color"] = r.Color
		}
		rows = append(rows, m)
	}
	return map[string]interface{}{
		"zoom":    tbl.Zoom,
		"skipped": tbl.Skipped,
		"total":   summary.TotalCount(),
		"breaks":  tbl.Breaks,
		"rows":    rows,
	}, nil
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), deps.requestTimeout())
		defer cancel()

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        ctx,
		})

		return c.JSON(result)
	}
}
