package gojaengine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dop251/goja"
)

const defaultHTTPTimeout = 30 * time.Second

// httpModule exposes http.get/post/put/delete/request to flow scripts, so a
// RunScript step can talk to a backend while the flow drives the UI.
func (e *Engine) httpModule() *goja.Object {
	obj := e.runtime.NewObject()

	for _, method := range []string{"GET", "POST", "PUT", "DELETE"} {
		m := method
		mustSet(e.runtime, obj, lowercase(m), func(call goja.FunctionCall) goja.Value {
			return e.doHTTPRequest(m, call.Arguments)
		})
	}

	mustSet(e.runtime, obj, "request", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			panic(e.runtime.NewTypeError("http.request requires method and url"))
		}
		return e.doHTTPRequest(call.Arguments[0].String(), call.Arguments[1:])
	})

	return obj
}

func mustSet(rt *goja.Runtime, obj *goja.Object, name string, fn interface{}) {
	if err := obj.Set(name, fn); err != nil {
		panic(rt.NewTypeError(fmt.Sprintf("failed to bind http.%s: %v", name, err)))
	}
}

func lowercase(method string) string {
	switch method {
	case "GET":
		return "get"
	case "POST":
		return "post"
	case "PUT":
		return "put"
	case "DELETE":
		return "delete"
	}
	return method
}

// requestOptions is the decoded second argument of an http.* call:
// {body, headers, timeout}.
type requestOptions struct {
	body    io.Reader
	headers map[string]string
	timeout time.Duration
}

func decodeOptions(arg goja.Value) requestOptions {
	opts := requestOptions{
		headers: make(map[string]string),
		timeout: defaultHTTPTimeout,
	}
	if arg == nil || goja.IsUndefined(arg) {
		return opts
	}
	raw, ok := arg.Export().(map[string]interface{})
	if !ok {
		return opts
	}

	switch b := raw["body"].(type) {
	case string:
		opts.body = bytes.NewBufferString(b)
	case map[string]interface{}:
		encoded, _ := json.Marshal(b)
		opts.body = bytes.NewBuffer(encoded)
		opts.headers["Content-Type"] = "application/json"
	}

	if h, ok := raw["headers"].(map[string]interface{}); ok {
		for k, v := range h {
			opts.headers[k] = fmt.Sprintf("%v", v)
		}
	}

	switch t := raw["timeout"].(type) {
	case int64:
		opts.timeout = time.Duration(t) * time.Millisecond
	case float64:
		opts.timeout = time.Duration(t) * time.Millisecond
	}

	return opts
}

func (e *Engine) doHTTPRequest(method string, args []goja.Value) goja.Value {
	if len(args) < 1 {
		panic(e.runtime.NewTypeError(fmt.Sprintf("http.%s requires url", lowercase(method))))
	}
	url := args[0].String()

	var opts requestOptions
	if len(args) > 1 {
		opts = decodeOptions(args[1])
	} else {
		opts = decodeOptions(nil)
	}

	req, err := http.NewRequest(method, url, opts.body)
	if err != nil {
		panic(e.runtime.NewTypeError(fmt.Sprintf("failed to create request: %v", err)))
	}
	for k, v := range opts.headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{Timeout: opts.timeout}
	resp, err := client.Do(req)
	if err != nil {
		panic(e.runtime.NewTypeError(fmt.Sprintf("HTTP request failed: %v", err)))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		panic(e.runtime.NewTypeError(fmt.Sprintf("failed to read response: %v", err)))
	}

	return e.responseObject(resp, body)
}

// responseObject builds the JS value scripts see: {status, body, headers,
// ok, json} with json set to null when the body is not valid JSON.
func (e *Engine) responseObject(resp *http.Response, body []byte) goja.Value {
	headers := make(map[string]string, len(resp.Header))
	for k, v := range resp.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	obj := e.runtime.NewObject()
	mustSet(e.runtime, obj, "status", resp.StatusCode)
	mustSet(e.runtime, obj, "body", string(body))
	mustSet(e.runtime, obj, "headers", headers)
	mustSet(e.runtime, obj, "ok", resp.StatusCode >= 200 && resp.StatusCode < 300)

	var parsed map[string]interface{}
	if err := json.Unmarshal(body, &parsed); err == nil {
		mustSet(e.runtime, obj, "json", parsed)
	} else {
		mustSet(e.runtime, obj, "json", goja.Null())
	}
	return obj
}
