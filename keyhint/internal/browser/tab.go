package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// NavigateTimeout bounds the initial navigation of a new tab.
const NavigateTimeout = 30 * time.Second

// Tab is a page keyhint drives.
type Tab struct {
	Page   *rod.Page
	PageID string
	owned  bool // opened by us, closed on Close
	router *rod.HijackRouter
}

// OpenTab creates a tab, applies resource blocking and navigates to
// pageURL. Headless browsers get a stealth page. An empty pageURL leaves
// the tab blank.
func OpenTab(ctx context.Context, mgr *Manager, pageURL, pageID string) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	var page *rod.Page
	var err error
	if mgr.Headless() {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	tab := &Tab{Page: page, PageID: pageID, owned: true}
	if len(mgr.cfg.ResourceBlocking) > 0 {
		tab.router = blockResources(page, mgr.cfg.ResourceBlocking)
	}

	if pageURL != "" {
		navCtx, cancel := context.WithTimeout(ctx, NavigateTimeout)
		defer cancel()
		if err := page.Context(navCtx).Navigate(pageURL); err != nil {
			_ = tab.Close()
			return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
		}
		if err := page.Context(navCtx).WaitLoad(); err != nil {
			mgr.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
		}
	}

	return tab, nil
}

// AttachTab wraps an existing target, typically a tab the user opened in
// a remote browser. Closing the Tab leaves the target open.
func AttachTab(mgr *Manager, targetID, pageID string) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}
	page, err := b.PageFromTarget(proto.TargetTargetID(targetID))
	if err != nil {
		return nil, fmt.Errorf("browser: attach %s: %w", targetID, err)
	}
	return &Tab{Page: page, PageID: pageID}, nil
}

// Targets lists the page targets of the browser.
func Targets(mgr *Manager) ([]*proto.TargetTargetInfo, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}
	res, err := proto.TargetGetTargets{}.Call(b)
	if err != nil {
		return nil, fmt.Errorf("browser: list targets: %w", err)
	}
	var out []*proto.TargetTargetInfo
	for _, t := range res.TargetInfos {
		if t.Type == proto.TargetTargetInfoTypePage {
			out = append(out, t)
		}
	}
	return out, nil
}

// Close stops resource blocking and closes the tab if it was opened by
// OpenTab.
func (t *Tab) Close() error {
	if t.router != nil {
		_ = t.router.Stop()
		t.router = nil
	}
	if t.Page == nil || !t.owned {
		return nil
	}
	return t.Page.Close()
}
