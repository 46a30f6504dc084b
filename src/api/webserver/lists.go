package webserver

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/obrc/blacklist/src/export"
	"github.com/obrc/blacklist/src/listing"
)

var errUnknownList = errors.New("unknown list")

// parseList maps the :list path segment onto a list table.
func parseList(name string) (listing.List, bool, error) {
	switch name {
	case listing.TablePersonBlacklist:
		return listing.Blacklist, false, nil
	case listing.TablePersonGreylist:
		return listing.Greylist, false, nil
	case listing.TableOrgBlacklist:
		return listing.Blacklist, true, nil
	case listing.TableOrgGreylist:
		return listing.Greylist, true, nil
	}
	return "", false, errUnknownList
}

type Lists struct {
	store export.ListReader
	now   func() time.Time
}

func NewLists(store export.ListReader) Lists {
	return Lists{store: store, now: time.Now}
}

// Get handles GET /v1/lists/:list.
func (h Lists) Get(c *gin.Context) {
	list, orgs, err := parseList(c.Param("list"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"err": err.Error()})
		return
	}
	ctx := c.Request.Context()
	if orgs {
		rows, err := h.store.Organizations(ctx, list)
		if err != nil {
			h.failed(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"list": c.Param("list"), "entries": rows, "count": len(rows)})
		return
	}
	rows, err := h.store.People(ctx, list)
	if err != nil {
		h.failed(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": c.Param("list"), "entries": rows, "count": len(rows)})
}

// Export handles GET /v1/lists/:list/export.
func (h Lists) Export(c *gin.Context) {
	list, orgs, err := parseList(c.Param("list"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"err": err.Error()})
		return
	}
	doc, err := export.Render(c.Request.Context(), h.store, list, orgs, h.now())
	if err != nil {
		h.failed(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Name))
	c.Data(http.StatusOK, doc.ContentType, doc.Data)
}

func (h Lists) failed(c *gin.Context, err error) {
	log.Printf("api: %s: %v", c.FullPath(), err)
	c.JSON(http.StatusInternalServerError, gin.H{"err": "failed to load list"})
}
