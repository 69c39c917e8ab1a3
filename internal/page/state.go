package page

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dop251/goja"
	"golang.org/x/net/html"

	"github.com/MimeLyc/subtitle-adskip/internal/errs"
	"github.com/MimeLyc/subtitle-adskip/pkg/log"
)

const initialStateMarker = "window.__INITIAL_STATE__"

// maxPageSize bounds the page HTML read by Fetch.
const maxPageSize = 8 << 20

// scriptTimeout bounds the evaluation of the initial state script.
var scriptTimeout = 2 * time.Second

// VideoData is the part of the page's initial state the pipeline uses.
// Duration is in seconds; 0 means unknown.
type VideoData struct {
	BVID     string
	CID      int64
	Title    string
	Desc     string
	Duration float64
}

// Fetch downloads a video page and reads its initial state.
func Fetch(ctx context.Context, client *http.Client, pageURL string) (*VideoData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch page: unexpected status %d", resp.StatusCode)
	}
	return ParseVideoData(io.LimitReader(resp.Body, maxPageSize))
}

// ParseVideoData finds the inline script assigning window.__INITIAL_STATE__
// and evaluates it.
func ParseVideoData(r io.Reader) (*VideoData, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, errs.Wrap(err, errs.Parse, "parse page html")
	}

	script := findInlineScript(doc, initialStateMarker)
	if script == "" {
		return nil, errs.New(errs.Parse, "page has no initial state script")
	}
	return evalInitialState(script)
}

func findInlineScript(n *html.Node, marker string) string {
	if n.Type == html.ElementNode && n.Data == "script" && n.FirstChild != nil {
		if text := n.FirstChild.Data; strings.Contains(text, marker) {
			return text
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if s := findInlineScript(c, marker); s != "" {
			return s
		}
	}
	return ""
}

// evalInitialState runs the script with a bare window object. The page's
// script usually ends with a self-removing IIFE that touches the DOM; it
// throws here, but only after the state has been assigned.
func evalInitialState(script string) (*VideoData, error) {
	vm := goja.New()
	window := vm.NewObject()
	_ = vm.Set("window", window)
	_ = vm.Set("document", vm.NewObject())

	timer := time.AfterFunc(scriptTimeout, func() {
		vm.Interrupt("timeout")
	})
	defer timer.Stop()

	if _, err := vm.RunScript("initial-state.js", script); err != nil {
		log.Debug("Initial state script stopped early: %v", err)
	}

	state := window.Get("__INITIAL_STATE__")
	if state == nil || goja.IsUndefined(state) || goja.IsNull(state) {
		return nil, errs.New(errs.Parse, "initial state script did not assign window.__INITIAL_STATE__")
	}

	videoData := state.ToObject(vm).Get("videoData")
	if videoData == nil || goja.IsUndefined(videoData) || goja.IsNull(videoData) {
		return nil, errs.New(errs.Parse, "initial state has no videoData")
	}
	obj := videoData.ToObject(vm)

	return &VideoData{
		BVID:     stringField(obj, "bvid"),
		CID:      int64(numberField(obj, "cid")),
		Title:    stringField(obj, "title"),
		Desc:     stringField(obj, "desc"),
		Duration: numberField(obj, "duration"),
	}, nil
}

func stringField(obj *goja.Object, name string) string {
	v := obj.Get(name)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}

func numberField(obj *goja.Object, name string) float64 {
	v := obj.Get(name)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return 0
	}
	return v.ToFloat()
}
