package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

const (
	// DefaultImage is a poppler image whose pdftotext does the conversion.
	DefaultImage = "minidocks/poppler"

	LabelManagedBy = "banklens.managed-by"

	containerPrefix = "banklens-extract-"
)

// Docker extracts text by running a one-shot converter container with the
// PDF bind-mounted read-only.
type Docker struct {
	client    *client.Client
	image     string
	available bool
}

// NewDocker creates a Docker extractor. If no Docker daemon is reachable it
// returns an extractor with available=false rather than an error, so callers
// can fall back.
func NewDocker(img string) (*Docker, error) {
	if img == "" {
		img = DefaultImage
	}
	d := &Docker{image: img}

	cli, err := createDockerClient()
	if err != nil {
		return d, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		return d, nil
	}

	d.client = cli
	d.available = true
	return d, nil
}

// createDockerClient creates a Docker client, trying multiple socket locations
// for compatibility with Docker Desktop on macOS.
func createDockerClient() (*client.Client, error) {
	// First try with environment settings (DOCKER_HOST, etc.)
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := cli.Ping(ctx); err == nil {
			return cli, nil
		}
		cli.Close()
	}

	// Try common Docker Desktop socket locations
	socketPaths := []string{
		"unix://" + os.Getenv("HOME") + "/.docker/run/docker.sock", // Docker Desktop macOS
		"unix:///var/run/docker.sock",                              // Linux default
		"unix://" + os.Getenv("HOME") + "/.colima/docker.sock",     // Colima
	}

	for _, socketPath := range socketPaths {
		cli, err := client.NewClientWithOpts(
			client.WithHost(socketPath),
			client.WithAPIVersionNegotiation(),
		)
		if err != nil {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err = cli.Ping(ctx)
		cancel()

		if err == nil {
			return cli, nil
		}
		cli.Close()
	}

	return nil, fmt.Errorf("could not connect to Docker daemon")
}

// IsAvailable returns whether Docker is available.
func (d *Docker) IsAvailable() bool {
	return d.available
}

// Close releases the underlying Docker client.
func (d *Docker) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}

// Extract runs the converter container against the PDF and returns its stdout.
func (d *Docker) Extract(ctx context.Context, path string) (string, error) {
	if !d.available {
		return "", fmt.Errorf("docker not available")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	if _, err := os.Stat(absPath); err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	if err := d.ensureImage(ctx); err != nil {
		return "", fmt.Errorf("pull image: %w", err)
	}

	target := "/in/" + filepath.Base(absPath)

	containerCfg := &container.Config{
		Image: d.image,
		Cmd:   []string{"pdftotext", "-layout", target, "-"},
		Labels: map[string]string{
			LabelManagedBy: "banklens",
		},
	}

	hostCfg := &container.HostConfig{
		Mounts: []mount.Mount{
			{
				Type:     mount.TypeBind,
				Source:   absPath,
				Target:   target,
				ReadOnly: true,
			},
		},
	}

	name := containerPrefix + fmt.Sprintf("%d", time.Now().UnixNano())
	resp, err := d.client.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, name)
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}
	defer d.client.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true})

	if err := d.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("start container: %w", err)
	}

	statusCh, errCh := d.client.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	var exitCode int64
	select {
	case err := <-errCh:
		if err != nil {
			return "", fmt.Errorf("wait for container: %w", err)
		}
	case status := <-statusCh:
		exitCode = status.StatusCode
	case <-ctx.Done():
		return "", ctx.Err()
	}

	logs, err := d.client.ContainerLogs(ctx, resp.ID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", fmt.Errorf("read container logs: %w", err)
	}
	defer logs.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, logs); err != nil && err != io.EOF {
		return "", fmt.Errorf("demux container logs: %w", err)
	}

	if exitCode != 0 {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = "no output"
		}
		return "", fmt.Errorf("converter exited with code %d: %s", exitCode, msg)
	}

	return stdout.String(), nil
}

// ensureImage pulls the converter image if it isn't present locally.
func (d *Docker) ensureImage(ctx context.Context) error {
	_, _, err := d.client.ImageInspectWithRaw(ctx, d.image)
	if err == nil {
		return nil
	}

	rc, err := d.client.ImagePull(ctx, d.image, image.PullOptions{})
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = io.Copy(io.Discard, rc)
	return err
}
