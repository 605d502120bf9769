package clients

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/eks-aiops/eks-devops-agent/internal/workflow"
)

// K8sClient wraps the Kubernetes clientset with the lookups the
// investigation steps need. It implements workflow.ClusterClient.
type K8sClient struct {
	clientset kubernetes.Interface
	config    *rest.Config
}

// K8sClientConfig holds configuration for the Kubernetes client
type K8sClientConfig struct {
	// KubeconfigPath is the path to the kubeconfig file
	// If empty, will try in-cluster config first, then ~/.kube/config
	KubeconfigPath string

	// QPS and Burst control client-side rate limiting
	QPS   float32 // Default: 50
	Burst int     // Default: 100

	// Timeout for API requests
	Timeout time.Duration // Default: 30s
}

// NewK8sClient creates a new Kubernetes client with connection pooling
// It tries in-cluster config first, then falls back to kubeconfig
func NewK8sClient(cfg *K8sClientConfig) (*K8sClient, error) {
	if cfg == nil {
		cfg = &K8sClientConfig{}
	}
	if cfg.QPS == 0 {
		cfg.QPS = 50
	}
	if cfg.Burst == 0 {
		cfg.Burst = 100
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	config, err := getKubeConfig(cfg.KubeconfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get kubeconfig: %w", err)
	}

	config.QPS = cfg.QPS
	config.Burst = cfg.Burst
	config.Timeout = cfg.Timeout

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes clientset: %w", err)
	}

	return &K8sClient{clientset: clientset, config: config}, nil
}

// NewK8sClientWithClientset wraps an existing clientset. Tests use this
// with the client-go fake.
func NewK8sClientWithClientset(clientset kubernetes.Interface) *K8sClient {
	return &K8sClient{clientset: clientset}
}

// getKubeConfig attempts to build a Kubernetes config
// Priority: 1) in-cluster, 2) provided path, 3) $KUBECONFIG, 4) ~/.kube/config
func getKubeConfig(kubeconfigPath string) (*rest.Config, error) {
	if config, err := rest.InClusterConfig(); err == nil {
		return config, nil
	}

	if kubeconfigPath != "" {
		config, err := clientcmd.BuildConfigFromFlags("", kubeconfigPath)
		if err == nil {
			return config, nil
		}
	}

	if kubeconfig := os.Getenv("KUBECONFIG"); kubeconfig != "" {
		config, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err == nil {
			return config, nil
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		defaultPath := filepath.Join(home, ".kube", "config")
		if _, err := os.Stat(defaultPath); err == nil {
			config, err := clientcmd.BuildConfigFromFlags("", defaultPath)
			if err == nil {
				return config, nil
			}
		}
	}

	return nil, fmt.Errorf("unable to find kubeconfig (tried in-cluster, KUBECONFIG env, ~/.kube/config)")
}

// HealthCheck verifies the client can connect to the cluster
func (c *K8sClient) HealthCheck(ctx context.Context) error {
	_, err := c.clientset.Discovery().ServerVersion()
	if err != nil {
		return fmt.Errorf("kubernetes health check failed: %w", err)
	}
	return nil
}

// GetServerVersion returns the Kubernetes server version
func (c *K8sClient) GetServerVersion(ctx context.Context) (string, error) {
	version, err := c.clientset.Discovery().ServerVersion()
	if err != nil {
		return "", fmt.Errorf("failed to get server version: %w", err)
	}
	return version.GitVersion, nil
}

// PodEvents returns the Kubernetes events attached to a pod.
func (c *K8sClient) PodEvents(ctx context.Context, namespace, pod string) ([]workflow.PodEvent, error) {
	events, err := c.clientset.CoreV1().Events(namespace).List(ctx, metav1.ListOptions{
		FieldSelector: "involvedObject.name=" + pod,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list events for pod %s/%s: %w", namespace, pod, err)
	}

	result := make([]workflow.PodEvent, 0, len(events.Items))
	for _, ev := range events.Items {
		result = append(result, workflow.PodEvent{
			Reason:    ev.Reason,
			Message:   ev.Message,
			Count:     ev.Count,
			Timestamp: ev.LastTimestamp.Time,
		})
	}
	return result, nil
}

// PodLogs fetches the last tailLines log lines of a pod.
func (c *K8sClient) PodLogs(ctx context.Context, namespace, pod string, tailLines int64) ([]string, error) {
	raw, err := c.clientset.CoreV1().Pods(namespace).GetLogs(pod, &corev1.PodLogOptions{
		TailLines: &tailLines,
	}).Do(ctx).Raw()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch logs for pod %s/%s: %w", namespace, pod, err)
	}

	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil, nil
	}
	return lines, nil
}

// RestartCount sums the restart counts across a pod's containers.
func (c *K8sClient) RestartCount(ctx context.Context, namespace, pod string) (int, error) {
	p, err := c.clientset.CoreV1().Pods(namespace).Get(ctx, pod, metav1.GetOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to get pod %s/%s: %w", namespace, pod, err)
	}

	total := 0
	for _, status := range p.Status.ContainerStatuses {
		total += int(status.RestartCount)
	}
	return total, nil
}

// ResourceLimits sums container requests and limits for a pod.
func (c *K8sClient) ResourceLimits(ctx context.Context, namespace, pod string) (*workflow.ResourceLimits, error) {
	p, err := c.clientset.CoreV1().Pods(namespace).Get(ctx, pod, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get pod %s/%s: %w", namespace, pod, err)
	}

	limits := &workflow.ResourceLimits{}
	for _, container := range p.Spec.Containers {
		if cpu := container.Resources.Requests.Cpu(); cpu != nil {
			limits.CPURequestMillis += cpu.MilliValue()
		}
		if mem := container.Resources.Requests.Memory(); mem != nil {
			limits.MemoryRequestBytes += mem.Value()
		}
		if cpu := container.Resources.Limits.Cpu(); cpu != nil {
			limits.CPULimitMillis += cpu.MilliValue()
		}
		if mem := container.Resources.Limits.Memory(); mem != nil {
			limits.MemoryLimitBytes += mem.Value()
		}
	}
	return limits, nil
}

// RecentChanges lists deployments and statefulsets created within the
// window.
func (c *K8sClient) RecentChanges(ctx context.Context, namespace string, window time.Duration) ([]workflow.ChangeInfo, error) {
	cutoff := time.Now().Add(-window)
	var changes []workflow.ChangeInfo

	deployments, err := c.clientset.AppsV1().Deployments(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments in namespace %s: %w", namespace, err)
	}
	for _, d := range deployments.Items {
		if d.CreationTimestamp.After(cutoff) {
			changes = append(changes, workflow.ChangeInfo{
				Kind:      "Deployment",
				Name:      d.Name,
				CreatedAt: d.CreationTimestamp.Time,
			})
		}
	}

	statefulsets, err := c.clientset.AppsV1().StatefulSets(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list statefulsets in namespace %s: %w", namespace, err)
	}
	for _, s := range statefulsets.Items {
		if s.CreationTimestamp.After(cutoff) {
			changes = append(changes, workflow.ChangeInfo{
				Kind:      "StatefulSet",
				Name:      s.Name,
				CreatedAt: s.CreationTimestamp.Time,
			})
		}
	}

	return changes, nil
}

// NodeInfo returns a node's conditions and allocatable resources.
func (c *K8sClient) NodeInfo(ctx context.Context, node string) (*workflow.NodeInfo, error) {
	n, err := c.clientset.CoreV1().Nodes().Get(ctx, node, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get node %s: %w", node, err)
	}

	conditions := make(map[string]string, len(n.Status.Conditions))
	for _, condition := range n.Status.Conditions {
		conditions[string(condition.Type)] = string(condition.Status)
	}

	info := &workflow.NodeInfo{
		Name:       n.Name,
		Conditions: conditions,
	}
	if cpu := n.Status.Allocatable.Cpu(); cpu != nil {
		info.AllocatableCPU = cpu.MilliValue()
	}
	if mem := n.Status.Allocatable.Memory(); mem != nil {
		info.AllocatableMemory = mem.Value()
	}
	return info, nil
}

// PodsOnNode lists the pods scheduled to a node with their summed resource
// requests.
func (c *K8sClient) PodsOnNode(ctx context.Context, node string) ([]workflow.PodInfo, error) {
	pods, err := c.clientset.CoreV1().Pods("").List(ctx, metav1.ListOptions{
		FieldSelector: "spec.nodeName=" + node,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods on node %s: %w", node, err)
	}

	result := make([]workflow.PodInfo, 0, len(pods.Items))
	for _, pod := range pods.Items {
		info := workflow.PodInfo{Name: pod.Name, Namespace: pod.Namespace}
		for _, container := range pod.Spec.Containers {
			if cpu := container.Resources.Requests.Cpu(); cpu != nil {
				info.CPUMillis += cpu.MilliValue()
			}
			if mem := container.Resources.Requests.Memory(); mem != nil {
				info.MemoryBytes += mem.Value()
			}
		}
		result = append(result, info)
	}
	return result, nil
}

// EvictionEvents lists eviction events recorded for pods on a node.
func (c *K8sClient) EvictionEvents(ctx context.Context, node string) ([]workflow.EvictionEvent, error) {
	events, err := c.clientset.CoreV1().Events("").List(ctx, metav1.ListOptions{
		FieldSelector: "reason=Evicted",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list eviction events: %w", err)
	}

	var result []workflow.EvictionEvent
	for _, ev := range events.Items {
		if ev.Source.Host != "" && ev.Source.Host != node {
			continue
		}
		result = append(result, workflow.EvictionEvent{
			Pod:       ev.InvolvedObject.Name,
			Message:   ev.Message,
			Timestamp: ev.LastTimestamp.Time,
		})
	}
	return result, nil
}

// RestartPod deletes a pod so its controller reschedules it.
func (c *K8sClient) RestartPod(ctx context.Context, namespace, pod string) error {
	err := c.clientset.CoreV1().Pods(namespace).Delete(ctx, pod, metav1.DeleteOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete pod %s/%s: %w", namespace, pod, err)
	}
	return nil
}

// ScaleDeployment sets a deployment's replica count.
func (c *K8sClient) ScaleDeployment(ctx context.Context, namespace, name string, replicas int32) error {
	deployments := c.clientset.AppsV1().Deployments(namespace)
	deployment, err := deployments.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return fmt.Errorf("failed to get deployment %s/%s: %w", namespace, name, err)
	}

	deployment.Spec.Replicas = &replicas
	if _, err := deployments.Update(ctx, deployment, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("failed to scale deployment %s/%s: %w", namespace, name, err)
	}
	return nil
}

// ClusterHealth represents the overall health of the cluster
type ClusterHealth struct {
	Status string     `json:"status"` // healthy, degraded, unhealthy
	Nodes  NodeHealth `json:"nodes"`
	Pods   PodHealth  `json:"pods"`
}

// NodeHealth represents node health metrics
type NodeHealth struct {
	Total    int `json:"total"`
	Ready    int `json:"ready"`
	NotReady int `json:"not_ready"`
}

// PodHealth represents pod health metrics
type PodHealth struct {
	Total     int `json:"total"`
	Running   int `json:"running"`
	Pending   int `json:"pending"`
	Failed    int `json:"failed"`
	Succeeded int `json:"succeeded"`
	Unknown   int `json:"unknown"`
}

// GetClusterHealth returns a summary of cluster health. The agent reports
// it in the startup notification.
func (c *K8sClient) GetClusterHealth(ctx context.Context) (*ClusterHealth, error) {
	nodes, err := c.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}

	pods, err := c.clientset.CoreV1().Pods("").List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods: %w", err)
	}

	totalNodes := len(nodes.Items)
	readyNodes := 0
	notReadyNodes := 0
	for _, node := range nodes.Items {
		for _, condition := range node.Status.Conditions {
			if condition.Type == corev1.NodeReady {
				if condition.Status == corev1.ConditionTrue {
					readyNodes++
				} else {
					notReadyNodes++
				}
				break
			}
		}
	}

	health := &ClusterHealth{
		Nodes: NodeHealth{Total: totalNodes, Ready: readyNodes, NotReady: notReadyNodes},
		Pods:  PodHealth{Total: len(pods.Items)},
	}
	for _, pod := range pods.Items {
		switch pod.Status.Phase {
		case corev1.PodRunning:
			health.Pods.Running++
		case corev1.PodPending:
			health.Pods.Pending++
		case corev1.PodFailed:
			health.Pods.Failed++
		case corev1.PodSucceeded:
			health.Pods.Succeeded++
		default:
			health.Pods.Unknown++
		}
	}

	health.Status = "healthy"
	if notReadyNodes > 0 || health.Pods.Failed > 0 {
		health.Status = "degraded"
	}
	if readyNodes == 0 || totalNodes == 0 {
		health.Status = "unhealthy"
	}
	return health, nil
}

// Clientset returns the underlying Kubernetes clientset
func (c *K8sClient) Clientset() kubernetes.Interface {
	return c.clientset
}

// GetConfig returns the Kubernetes rest config
func (c *K8sClient) GetConfig() *rest.Config {
	return c.config
}

// Close cleans up the client resources
// Note: Kubernetes clientset doesn't require explicit cleanup,
// but this method is provided for future extensibility
func (c *K8sClient) Close() error {
	return nil
}
