// Package portal harvests document references from the Doctor Alliance
// clinician portal with a scripted Chrome session. It logs in with a service
// account, impersonates the company's helper user, then walks the Inbox and
// Signed list views page by page inside the configured date window.
package portal

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/silverline-health/ordersync/internal/config"
	"github.com/silverline-health/ordersync/internal/model"
)

// Extractor drives the portal browser session.
type Extractor struct {
	cfg     config.PortalConfig
	stopped atomic.Bool
}

// New creates an Extractor. Call Stop from a signal handler for a cooperative
// shutdown between rows.
func New(cfg config.PortalConfig) *Extractor {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 200
	}
	if cfg.MaxEmptyPages <= 0 {
		cfg.MaxEmptyPages = 3
	}
	if cfg.PageTimeoutSecs <= 0 {
		cfg.PageTimeoutSecs = 45
	}
	if cfg.NPIAttempts <= 0 {
		cfg.NPIAttempts = 2
	}
	if cfg.NPIResetEvery <= 0 {
		cfg.NPIResetEvery = 25
	}
	return &Extractor{cfg: cfg}
}

// Stop requests a cooperative stop; the extractor finishes the current row
// and returns what it has.
func (e *Extractor) Stop() { e.stopped.Store(true) }

// Extract harvests document references for one company. A run that yields
// zero documents is retried once from scratch before giving up.
func (e *Extractor) Extract(ctx context.Context, company model.CompanyConfig) ([]model.DocumentRef, error) {
	refs, err := e.extractOnce(ctx, company)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 && !e.stopped.Load() {
		zap.L().Warn("extraction yielded zero documents, retrying once",
			zap.String("company", company.Key))
		refs, err = e.extractOnce(ctx, company)
		if err != nil {
			return nil, err
		}
	}
	return refs, nil
}

func (e *Extractor) extractOnce(ctx context.Context, company model.CompanyConfig) ([]model.DocumentRef, error) {
	start, end, ok := company.Window()
	if !ok {
		return nil, eris.Errorf("portal: company %s has an invalid date window", company.Key)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", e.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	// The portal serves session cookies before any DOM is ready; enabling
	// network tracking up front keeps them across navigations.
	if err := chromedp.Run(browserCtx, network.Enable()); err != nil {
		return nil, eris.Wrap(err, "portal: start browser")
	}

	if err := e.login(browserCtx); err != nil {
		return nil, err
	}
	if err := e.impersonate(browserCtx, company.HelperID); err != nil {
		return nil, err
	}

	seen := model.SeenSet{}
	filter := company.Filter()
	var refs []model.DocumentRef

	for _, source := range []model.SourceView{model.SourceInbox, model.SourceSigned} {
		if !company.HasSource(source) {
			continue
		}
		if e.stopped.Load() {
			break
		}
		viewRefs, err := e.scanView(browserCtx, source, start, end, filter, seen)
		if err != nil {
			zap.L().Error("view scan failed",
				zap.String("company", company.Key),
				zap.String("source", string(source)),
				zap.Error(err))
			continue
		}
		refs = append(refs, viewRefs...)
	}

	e.enrichNPIs(browserCtx, refs)

	zap.L().Info("extraction complete",
		zap.String("company", company.Key),
		zap.Int("documents", len(refs)))
	return refs, nil
}

func (e *Extractor) login(ctx context.Context) error {
	timeout := time.Duration(e.cfg.PageTimeoutSecs) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := chromedp.Run(ctx,
		chromedp.Navigate(e.cfg.BaseURL+"/Account/Login"),
		chromedp.WaitVisible(`#Username`, chromedp.ByID),
		chromedp.SendKeys(`#Username`, e.cfg.Username, chromedp.ByID),
		chromedp.SendKeys(`#Password`, e.cfg.Password, chromedp.ByID),
		chromedp.Click(`button[type="submit"]`, chromedp.ByQuery),
		chromedp.WaitVisible(`#main-menu`, chromedp.ByID),
	)
	if err != nil {
		return eris.Wrap(err, "portal: login")
	}
	return nil
}

// impersonate searches the admin user list for the helper account and enters
// its session.
func (e *Extractor) impersonate(ctx context.Context, helperID string) error {
	timeout := time.Duration(e.cfg.PageTimeoutSecs) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := chromedp.Run(ctx,
		chromedp.Navigate(e.cfg.BaseURL+"/Admin/Users"),
		chromedp.WaitVisible(`#user-search`, chromedp.ByID),
		chromedp.SendKeys(`#user-search`, helperID, chromedp.ByID),
		chromedp.Click(`#user-search-btn`, chromedp.ByID),
		chromedp.WaitVisible(`a.impersonate-link`, chromedp.ByQuery),
		chromedp.Click(`a.impersonate-link`, chromedp.ByQuery),
		chromedp.WaitVisible(`#impersonation-banner`, chromedp.ByID),
	)
	if err != nil {
		return eris.Wrapf(err, "portal: impersonate helper %s", helperID)
	}
	return nil
}

func viewURL(base string, source model.SourceView) string {
	if source == model.SourceSigned {
		return base + "/Documents/Signed"
	}
	return base + "/Documents/Inbox"
}

// scanView runs the NAV, FILTER, SCAN_PAGE, PAGINATE loop for one list view.
func (e *Extractor) scanView(ctx context.Context, source model.SourceView, start, end time.Time, filter model.TypeFilter, seen model.SeenSet) ([]model.DocumentRef, error) {
	timeout := time.Duration(e.cfg.PageTimeoutSecs) * time.Second

	if err := e.navigate(ctx, viewURL(e.cfg.BaseURL, source), timeout); err != nil {
		return nil, err
	}
	if source == model.SourceSigned {
		if err := e.applySignedFilter(ctx, start, end, timeout); err != nil {
			return nil, err
		}
	}

	tally := scanTally{maxPages: e.cfg.MaxPages, maxEmpty: e.cfg.MaxEmptyPages}
	newestFirst := source == model.SourceInbox
	var refs []model.DocumentRef

	for {
		if e.stopped.Load() || ctx.Err() != nil {
			break
		}

		rows, err := e.readRows(ctx, timeout)
		if err != nil {
			// One refresh retry per page timeout.
			zap.L().Warn("page read failed, refreshing", zap.Error(err))
			if err := e.refresh(ctx, timeout); err != nil {
				return refs, eris.Wrap(err, "portal: refresh after page failure")
			}
			rows, err = e.readRows(ctx, timeout)
			if err != nil {
				return refs, eris.Wrap(err, "portal: read rows")
			}
		}

		newDocs := 0
		stop := false
		for _, row := range rows {
			if e.stopped.Load() {
				stop = true
				break
			}
			switch evaluateRow(row, start, end, filter, seen, newestFirst) {
			case rowAccept:
				seen.Add(row.DocID)
				refs = append(refs, model.DocumentRef{
					DocID:        strings.TrimSpace(row.DocID),
					DocType:      strings.ToUpper(strings.TrimSpace(row.DocType)),
					Source:       source,
					ReceivedDate: model.NormalizeDate(row.ReceivedDate),
				})
				newDocs++
			case rowStop:
				stop = true
			}
			if stop {
				break
			}
		}

		if stop || tally.recordPage(newDocs) {
			break
		}

		moved, err := e.nextPage(ctx, timeout)
		if err != nil {
			zap.L().Warn("pagination failed", zap.Error(err))
			break
		}
		if !moved {
			break
		}
	}

	zap.L().Info("view scanned",
		zap.String("source", string(source)),
		zap.Int("pages", tally.pages),
		zap.Int("documents", len(refs)))
	return refs, nil
}

func (e *Extractor) navigate(ctx context.Context, url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := chromedp.Run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitVisible(`table.document-table`, chromedp.ByQuery),
	)
	if err != nil {
		return eris.Wrapf(err, "portal: navigate %s", url)
	}
	return nil
}

// applySignedFilter sets the "All" status and the date bounds on the Signed
// view, then waits for a populated table or the no-records cell.
func (e *Extractor) applySignedFilter(ctx context.Context, start, end time.Time, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := chromedp.Run(ctx,
		chromedp.Click(`#status-all`, chromedp.ByID),
		chromedp.SetValue(`#filter-start-date`, model.FormatDate(start), chromedp.ByID),
		chromedp.SetValue(`#filter-end-date`, model.FormatDate(end), chromedp.ByID),
		chromedp.Click(`#filter-refresh`, chromedp.ByID),
		chromedp.WaitVisible(`table.document-table tbody tr, td.dataTables_empty`, chromedp.ByQuery),
	)
	if err != nil {
		return eris.Wrap(err, "portal: apply signed filter")
	}
	return nil
}

// readRows pulls the visible table rows through one JS evaluation.
func (e *Extractor) readRows(ctx context.Context, timeout time.Duration) ([]RawRow, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var rows []RawRow
	const script = `Array.from(document.querySelectorAll("table.document-table tbody tr"))
		.filter(tr => !tr.querySelector("td.dataTables_empty"))
		.map(tr => ({
			DocID: (tr.getAttribute("data-docid") || (tr.cells[0] ? tr.cells[0].innerText : "")).trim(),
			DocType: (tr.cells[2] ? tr.cells[2].innerText : "").trim(),
			ReceivedDate: (tr.cells[4] ? tr.cells[4].innerText : "").trim(),
		}))`
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &rows)); err != nil {
		return nil, eris.Wrap(err, "portal: enumerate rows")
	}
	return rows, nil
}

func (e *Extractor) refresh(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return chromedp.Run(ctx,
		chromedp.Reload(),
		chromedp.WaitVisible(`table.document-table`, chromedp.ByQuery),
	)
}

// nextPage clicks the next control and verifies movement through row count,
// tbody HTML, or URL change.
func (e *Extractor) nextPage(ctx context.Context, timeout time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var disabled bool
	err := chromedp.Run(ctx, chromedp.Evaluate(
		`(() => { const n = document.querySelector("a.paginate_button.next");
		  return !n || n.classList.contains("disabled"); })()`, &disabled))
	if err != nil {
		return false, eris.Wrap(err, "portal: inspect next control")
	}
	if disabled {
		return false, nil
	}

	before, err := e.capturePageState(ctx)
	if err != nil {
		return false, err
	}

	if err := chromedp.Run(ctx, chromedp.Click(`a.paginate_button.next`, chromedp.ByQuery)); err != nil {
		return false, eris.Wrap(err, "portal: click next")
	}

	// Poll for movement; one refresh retry before giving up.
	for attempt := 0; attempt < 2; attempt++ {
		deadline := time.Now().Add(timeout / 2)
		for time.Now().Before(deadline) {
			after, err := e.capturePageState(ctx)
			if err != nil {
				return false, err
			}
			if before.changed(after) {
				return true, nil
			}
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
		}
		if attempt == 0 {
			if err := e.refresh(ctx, timeout); err != nil {
				return false, err
			}
		}
	}
	return false, nil
}

func (e *Extractor) capturePageState(ctx context.Context) (pageState, error) {
	var st pageState
	err := chromedp.Run(ctx,
		chromedp.Evaluate(`document.querySelectorAll("table.document-table tbody tr").length`, &st.RowCount),
		chromedp.Evaluate(`(document.querySelector("table.document-table tbody") || {}).innerHTML || ""`, &st.TbodyHTML),
		chromedp.Location(&st.URL),
	)
	if err != nil {
		return pageState{}, eris.Wrap(err, "portal: capture page state")
	}
	return st, nil
}

// enrichNPIs opens each document's detail page and fills the physician NPI
// in place. Failures skip the row; the session is re-anchored periodically.
func (e *Extractor) enrichNPIs(ctx context.Context, refs []model.DocumentRef) {
	if e.cfg.TestNPI != "" {
		for i := range refs {
			refs[i].NPI = e.cfg.TestNPI
		}
		return
	}

	timeout := time.Duration(e.cfg.PageTimeoutSecs) * time.Second
	for i := range refs {
		if e.stopped.Load() || ctx.Err() != nil {
			return
		}
		if i > 0 && i%e.cfg.NPIResetEvery == 0 {
			if err := e.navigate(ctx, viewURL(e.cfg.BaseURL, refs[i].Source), timeout); err != nil {
				zap.L().Warn("npi session reset failed", zap.Error(err))
			}
		}

		npi, err := e.fetchNPI(ctx, refs[i].DocID, timeout)
		if err != nil {
			zap.L().Debug("npi fetch failed",
				zap.String("docid", refs[i].DocID), zap.Error(err))
			continue
		}
		refs[i].NPI = npi
	}
}

func (e *Extractor) fetchNPI(ctx context.Context, docID string, timeout time.Duration) (string, error) {
	detailURL := fmt.Sprintf("%s/Documents/Detail/%s", e.cfg.BaseURL, docID)

	var lastErr error
	for attempt := 0; attempt < e.cfg.NPIAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		var source string
		err := chromedp.Run(attemptCtx,
			chromedp.Navigate(detailURL),
			chromedp.WaitReady(`body`, chromedp.ByQuery),
			chromedp.OuterHTML(`html`, &source, chromedp.ByQuery),
		)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		if npi := findNPI(source); npi != "" {
			return npi, nil
		}
		lastErr = eris.Errorf("portal: no npi on detail page for %s", docID)
	}
	return "", lastErr
}
