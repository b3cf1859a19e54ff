package http

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/CHRISCARLON/infra-hex/internal/core/domain"
	"github.com/CHRISCARLON/infra-hex/internal/pkg/classify"
	"github.com/CHRISCARLON/infra-hex/internal/pkg/table"
)

// outputOptions are the query parameters shared by the summary endpoints.
type outputOptions struct {
	format  table.Format
	classes int
	palette string
}

func parseOutput(c *fiber.Ctx) (outputOptions, error) {
	f, err := table.ParseFormat(c.Query("format"), table.FormatJSON)
	if err != nil {
		return outputOptions{}, err
	}
	classes := 0
	if raw := c.Query("classes"); raw != "" {
		classes, err = strconv.Atoi(raw)
		if err != nil {
			return outputOptions{}, fmt.Errorf("classes must be an integer")
		}
		if err := classify.ValidateClasses(classes); err != nil {
			return outputOptions{}, err
		}
	}
	return outputOptions{format: f, classes: classes, palette: c.Query("palette")}, nil
}

func queryFloat(c *fiber.Ctx, name string) (float64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	return v, nil
}

func queryZoom(c *fiber.Ctx) (int, error) {
	raw := c.Query("zoom")
	if raw == "" {
		return 0, fmt.Errorf("zoom is required")
	}
	zoom, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("zoom must be an integer")
	}
	return zoom, nil
}

// sendTable packages a summary in the requested format.
func sendTable(c *fiber.Ctx, summary *domain.HexSummaryTable, opts outputOptions) error {
	tbl, err := table.FromSummary(summary)
	if err != nil {
		return errFromDomain(c, err)
	}
	if opts.classes > 0 && opts.format != table.FormatArrow {
		tbl.Classify(opts.classes, opts.palette)
	}

	var buf bytes.Buffer
	if err := tbl.Write(&buf, opts.format); err != nil {
		return errFromDomain(c, err)
	}
	c.Set(fiber.HeaderContentType, opts.format.ContentType())
	c.Set("X-Hex-Rows", strconv.Itoa(tbl.Len()))
	c.Set("X-Hex-Skipped", strconv.Itoa(tbl.Skipped))
	return c.Send(buf.Bytes())
}

// HexSummaryHandler counts pipes per hex cell inside a bounding box.
func HexSummaryHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var bounds [4]float64
		for i, name := range []string{"min_lat", "min_lon", "max_lat", "max_lon"} {
			v, err := queryFloat(c, name)
			if err != nil {
				return errBadRequest(c, err.Error())
			}
			bounds[i] = v
		}
		zoom, err := queryZoom(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		opts, err := parseOutput(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		bbox := domain.NewBBox(bounds[0], bounds[1], bounds[2], bounds[3])
		summary, err := deps.Summaries.SummarizeByBBox(c.UserContext(), bbox, zoom)
		if err != nil {
			return errFromDomain(c, err)
		}
		return sendTable(c, summary, opts)
	}
}

// AreaHexSummaryHandler counts pipes per hex cell inside a built-up area polygon.
func AreaHexSummaryHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		objectID, err := strconv.ParseInt(c.Params("object_id"), 10, 64)
		if err != nil {
			return errBadRequest(c, "object_id must be an integer")
		}
		zoom, err := queryZoom(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		opts, err := parseOutput(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		summary, err := deps.Summaries.SummarizeByArea(c.UserContext(), objectID, zoom)
		if err != nil {
			return errFromDomain(c, err)
		}
		return sendTable(c, summary, opts)
	}
}

// ListRunsHandler returns the audit log of pipeline runs, newest first.
func ListRunsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Runs == nil {
			return errServiceUnavailable(c, "run history is not configured")
		}

		offset, limit := parsePage(c, 50, 500)
		runs, total, err := deps.Runs.List(c.UserContext(), offset, limit)
		if err != nil {
			return errInternal(c, err.Error())
		}
		if runs == nil {
			runs = []domain.SummaryRun{}
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: runs, Pagination: pg})
	}
}
