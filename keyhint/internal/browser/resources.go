// CLAUDE:SUMMARY Blocks configured resource types on a tab through request hijacking.
package browser

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// resourceClass maps CDP resource types to their configuration names.
var resourceClass = map[proto.NetworkResourceType]string{
	proto.NetworkResourceTypeImage:      "images",
	proto.NetworkResourceTypeFont:       "fonts",
	proto.NetworkResourceTypeMedia:      "media",
	proto.NetworkResourceTypeStylesheet: "stylesheets",
}

func blockSet(types []string) map[string]bool {
	set := make(map[string]bool, len(types))
	for _, t := range types {
		set[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return set
}

// blocked reports whether a request of type t is refused. Types are
// matched by configuration name or by raw CDP name ("xhr", "script").
func blocked(set map[string]bool, t proto.NetworkResourceType) bool {
	if name, ok := resourceClass[t]; ok && set[name] {
		return true
	}
	return set[strings.ToLower(string(t))]
}

// blockResources fails matching requests of page until the returned
// router is stopped.
func blockResources(page *rod.Page, types []string) *rod.HijackRouter {
	set := blockSet(types)
	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		if blocked(set, h.Request.Type()) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	return router
}
