package client

import (
	"net"
	"os"
	"path/filepath"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/dskidx/dskidx/protocol"
)

// fakeDaemon accepts one connection and replies to every request with resp.
func fakeDaemon(sockPath string, resp protocol.Response) net.Listener {
	ln, err := net.Listen("unix", sockPath)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		reader := protocol.NewReader(conn)
		for {
			if _, err := reader.ReadRequest(); err != nil {
				return
			}
			if err := protocol.WriteResponse(conn, resp); err != nil {
				return
			}
		}
	}()
	return ln
}

var _ = ginkgo.Describe("Dial", func() {
	ginkgo.Context("when nothing is listening", func() {
		ginkgo.It("fails fast", func() {
			dir, err := os.MkdirTemp("", "dskidx-client-test-*")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			defer os.RemoveAll(dir)

			_, err = Dial(filepath.Join(dir, "no-such.sock"))
			gomega.Expect(err).To(gomega.HaveOccurred())
		})
	})
})

var _ = ginkgo.Describe("Do and the typed wrappers", func() {
	var (
		dir      string
		sockPath string
		ln       net.Listener
		cli      *Client
	)

	ginkgo.BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "dskidx-client-test-*")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		sockPath = filepath.Join(dir, "daemon.sock")
	})

	ginkgo.AfterEach(func() {
		if cli != nil {
			cli.Close()
		}
		if ln != nil {
			ln.Close()
		}
		os.RemoveAll(dir)
	})

	ginkgo.Context("a status request", func() {
		ginkgo.BeforeEach(func() {
			ln = fakeDaemon(sockPath, protocol.Status(3))
			var err error
			cli, err = Dial(sockPath)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
		})

		ginkgo.It("decodes the status response", func() {
			resp, err := cli.Status()
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(resp.Type).To(gomega.Equal(protocol.TypeStatus))
			gomega.Expect(resp.HasIndexCount).To(gomega.Equal(3))
		})
	})

	ginkgo.Context("multiple requests over one connection", func() {
		ginkgo.BeforeEach(func() {
			ln = fakeDaemon(sockPath, protocol.OK())
			var err error
			cli, err = Dial(sockPath)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
		})

		ginkgo.It("each yields exactly one response", func() {
			_, err := cli.Warmup([]string{"/a"}, false)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			resp, err := cli.Shutdown()
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(resp.Type).To(gomega.Equal(protocol.TypeOK))
		})
	})
})
