package testsuite

import (
	"encoding/json"
	"io"
	"net/http"
)

// fakeUpstreamResponse is the response from fake upstream.
type fakeUpstreamResponse struct {
	URI     string      `json:"uri"`
	Method  string      `json:"method"`
	Address string      `json:"address"`
	Headers http.Header `json:"headers"`
	Body    string      `json:"body"`
}

// FakeUpstreamService acts as a fake upstream service, returns the headers and request.
type FakeUpstreamService struct{}

func (f *FakeUpstreamService) ServeHTTP(wrt http.ResponseWriter, req *http.Request) {
	reqBody, err := io.ReadAll(req.Body)
	if err != nil {
		wrt.WriteHeader(http.StatusInternalServerError)
		return
	}

	wrt.Header().Set(TestProxyAccepted, "true")
	wrt.Header().Set("Content-Type", "application/json")
	content, err := json.Marshal(&fakeUpstreamResponse{
		// req.URL.String() is what is actually sent to the upstream service.
		URI:     req.URL.String(),
		Method:  req.Method,
		Address: req.RemoteAddr,
		Headers: req.Header,
		Body:    string(reqBody),
	})
	if err != nil {
		wrt.WriteHeader(http.StatusInternalServerError)
		return
	}

	wrt.WriteHeader(http.StatusOK)
	_, _ = wrt.Write(content)
}
