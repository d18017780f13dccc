package http

import (
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

const pageSize = 20

var errInvalidPage = fiber.NewError(fiber.StatusNotFound, "Invalid page.")

type page struct {
	number int
}

// pageParam reads ?page=N, defaulting to the first page.
func pageParam(c *fiber.Ctx) (page, error) {
	raw := c.Query("page")
	if raw == "" {
		return page{number: 1}, nil
	}
	n, err := strconv.Atoi(raw)
	// The offset has to fit an int.
	if err != nil || n < 1 || n > math.MaxInt/pageSize {
		return page{}, errInvalidPage
	}
	return page{number: n}, nil
}

func (p page) limit() int  { return pageSize }
func (p page) offset() int { return (p.number - 1) * pageSize }

type paginated struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  any     `json:"results"`
}

// respond writes one page of results out of count. A page past the end is
// rejected, except the first one of an empty list.
func (p page) respond(c *fiber.Ctx, count int, results any) error {
	if p.number > 1 && p.offset() >= count {
		return errInvalidPage
	}
	out := paginated{Count: count, Results: results}
	if p.offset()+pageSize < count {
		out.Next = pageURL(c, p.number+1)
	}
	if p.number > 1 {
		out.Previous = pageURL(c, p.number-1)
	}
	return c.JSON(out)
}

func pageURL(c *fiber.Ctx, n int) *string {
	args := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(args)
	c.Request().URI().QueryArgs().CopyTo(args)
	if n == 1 {
		args.Del("page")
	} else {
		args.Set("page", strconv.Itoa(n))
	}

	u := c.BaseURL() + c.Path()
	if args.Len() > 0 {
		u += "?" + args.String()
	}
	return &u
}

// window slices all to the current page.
func window[T any](p page, all []T) []T {
	start := p.offset()
	if start >= len(all) {
		return []T{}
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}
