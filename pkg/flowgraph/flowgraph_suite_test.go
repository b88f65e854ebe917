package flowgraph_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestFlowgraph(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Flowgraph Suite")
}
