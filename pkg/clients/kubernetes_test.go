package clients

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func quantity(t *testing.T, s string) resource.Quantity {
	t.Helper()
	q, err := resource.ParseQuantity(s)
	require.NoError(t, err)
	return q
}

func testPod(t *testing.T, name, namespace string, restarts int32) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace},
		Spec: corev1.PodSpec{
			NodeName: "node-1",
			Containers: []corev1.Container{{
				Name: "app",
				Resources: corev1.ResourceRequirements{
					Requests: corev1.ResourceList{
						corev1.ResourceCPU:    quantity(t, "100m"),
						corev1.ResourceMemory: quantity(t, "128Mi"),
					},
					Limits: corev1.ResourceList{
						corev1.ResourceCPU:    quantity(t, "200m"),
						corev1.ResourceMemory: quantity(t, "256Mi"),
					},
				},
			}},
		},
		Status: corev1.PodStatus{
			Phase: corev1.PodRunning,
			ContainerStatuses: []corev1.ContainerStatus{
				{Name: "app", RestartCount: restarts},
			},
		},
	}
}

func TestK8sClient_PodEvents(t *testing.T) {
	clientset := fake.NewSimpleClientset(&corev1.Event{
		ObjectMeta:     metav1.ObjectMeta{Name: "oom-1", Namespace: "shop"},
		InvolvedObject: corev1.ObjectReference{Kind: "Pod", Name: "orders-api-0"},
		Reason:         "OOMKilling",
		Message:        "Memory cgroup out of memory",
		Count:          3,
	})
	client := NewK8sClientWithClientset(clientset)

	events, err := client.PodEvents(context.Background(), "shop", "orders-api-0")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "OOMKilling", events[0].Reason)
	assert.Equal(t, int32(3), events[0].Count)
}

func TestK8sClient_RestartCount(t *testing.T) {
	clientset := fake.NewSimpleClientset(testPod(t, "orders-api-0", "shop", 7))
	client := NewK8sClientWithClientset(clientset)

	count, err := client.RestartCount(context.Background(), "shop", "orders-api-0")
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestK8sClient_RestartCount_NotFound(t *testing.T) {
	client := NewK8sClientWithClientset(fake.NewSimpleClientset())

	_, err := client.RestartCount(context.Background(), "shop", "missing")
	assert.Error(t, err)
}

func TestK8sClient_ResourceLimits(t *testing.T) {
	clientset := fake.NewSimpleClientset(testPod(t, "orders-api-0", "shop", 0))
	client := NewK8sClientWithClientset(clientset)

	limits, err := client.ResourceLimits(context.Background(), "shop", "orders-api-0")
	require.NoError(t, err)
	assert.Equal(t, int64(100), limits.CPURequestMillis)
	assert.Equal(t, int64(200), limits.CPULimitMillis)
	assert.Equal(t, int64(128*1024*1024), limits.MemoryRequestBytes)
	assert.Equal(t, int64(256*1024*1024), limits.MemoryLimitBytes)
}

func TestK8sClient_RecentChanges(t *testing.T) {
	now := metav1.Now()
	old := metav1.NewTime(time.Now().Add(-48 * time.Hour))

	clientset := fake.NewSimpleClientset(
		&appsv1.Deployment{ObjectMeta: metav1.ObjectMeta{
			Name: "fresh", Namespace: "shop", CreationTimestamp: now,
		}},
		&appsv1.Deployment{ObjectMeta: metav1.ObjectMeta{
			Name: "stale", Namespace: "shop", CreationTimestamp: old,
		}},
		&appsv1.StatefulSet{ObjectMeta: metav1.ObjectMeta{
			Name: "fresh-db", Namespace: "shop", CreationTimestamp: now,
		}},
	)
	client := NewK8sClientWithClientset(clientset)

	changes, err := client.RecentChanges(context.Background(), "shop", 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, changes, 2)

	names := map[string]string{}
	for _, change := range changes {
		names[change.Name] = change.Kind
	}
	assert.Equal(t, "Deployment", names["fresh"])
	assert.Equal(t, "StatefulSet", names["fresh-db"])
}

func TestK8sClient_NodeInfo(t *testing.T) {
	clientset := fake.NewSimpleClientset(&corev1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: "node-1"},
		Status: corev1.NodeStatus{
			Conditions: []corev1.NodeCondition{
				{Type: corev1.NodeReady, Status: corev1.ConditionTrue},
				{Type: corev1.NodeMemoryPressure, Status: corev1.ConditionTrue},
			},
			Allocatable: corev1.ResourceList{
				corev1.ResourceCPU:    quantity(t, "4"),
				corev1.ResourceMemory: quantity(t, "16Gi"),
			},
		},
	})
	client := NewK8sClientWithClientset(clientset)

	info, err := client.NodeInfo(context.Background(), "node-1")
	require.NoError(t, err)
	assert.Equal(t, "True", info.Conditions["MemoryPressure"])
	assert.Equal(t, int64(4000), info.AllocatableCPU)
	assert.Equal(t, int64(16*1024*1024*1024), info.AllocatableMemory)
}

func TestK8sClient_PodsOnNode(t *testing.T) {
	clientset := fake.NewSimpleClientset(
		testPod(t, "a", "shop", 0),
		testPod(t, "b", "shop", 0),
	)
	client := NewK8sClientWithClientset(clientset)

	pods, err := client.PodsOnNode(context.Background(), "node-1")
	require.NoError(t, err)
	require.Len(t, pods, 2)
	assert.Equal(t, int64(100), pods[0].CPUMillis)
	assert.Equal(t, int64(128*1024*1024), pods[0].MemoryBytes)
}

func TestK8sClient_EvictionEvents(t *testing.T) {
	clientset := fake.NewSimpleClientset(
		&corev1.Event{
			ObjectMeta:     metav1.ObjectMeta{Name: "evict-1", Namespace: "shop"},
			InvolvedObject: corev1.ObjectReference{Kind: "Pod", Name: "victim"},
			Reason:         "Evicted",
			Message:        "The node was low on resource: memory",
			Source:         corev1.EventSource{Host: "node-1"},
		},
		&corev1.Event{
			ObjectMeta:     metav1.ObjectMeta{Name: "evict-2", Namespace: "shop"},
			InvolvedObject: corev1.ObjectReference{Kind: "Pod", Name: "other-victim"},
			Reason:         "Evicted",
			Source:         corev1.EventSource{Host: "node-2"},
		},
	)
	client := NewK8sClientWithClientset(clientset)

	evictions, err := client.EvictionEvents(context.Background(), "node-1")
	require.NoError(t, err)
	require.Len(t, evictions, 1)
	assert.Equal(t, "victim", evictions[0].Pod)
}

func TestK8sClient_RestartPod(t *testing.T) {
	clientset := fake.NewSimpleClientset(testPod(t, "orders-api-0", "shop", 0))
	client := NewK8sClientWithClientset(clientset)

	require.NoError(t, client.RestartPod(context.Background(), "shop", "orders-api-0"))

	_, err := clientset.CoreV1().Pods("shop").Get(context.Background(), "orders-api-0", metav1.GetOptions{})
	assert.Error(t, err)
}

func TestK8sClient_ScaleDeployment(t *testing.T) {
	one := int32(1)
	clientset := fake.NewSimpleClientset(&appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: "api", Namespace: "shop"},
		Spec:       appsv1.DeploymentSpec{Replicas: &one},
	})
	client := NewK8sClientWithClientset(clientset)

	require.NoError(t, client.ScaleDeployment(context.Background(), "shop", "api", 5))

	deployment, err := clientset.AppsV1().Deployments("shop").Get(context.Background(), "api", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(5), *deployment.Spec.Replicas)
}

func TestK8sClient_GetClusterHealth(t *testing.T) {
	clientset := fake.NewSimpleClientset(
		&corev1.Node{
			ObjectMeta: metav1.ObjectMeta{Name: "node-1"},
			Status: corev1.NodeStatus{Conditions: []corev1.NodeCondition{
				{Type: corev1.NodeReady, Status: corev1.ConditionTrue},
			}},
		},
		testPod(t, "running", "shop", 0),
	)
	client := NewK8sClientWithClientset(clientset)

	health, err := client.GetClusterHealth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, 1, health.Nodes.Ready)
	assert.Equal(t, 1, health.Pods.Running)
}

func TestK8sClient_GetClusterHealth_Degraded(t *testing.T) {
	failed := testPod(t, "broken", "shop", 0)
	failed.Status.Phase = corev1.PodFailed

	clientset := fake.NewSimpleClientset(
		&corev1.Node{
			ObjectMeta: metav1.ObjectMeta{Name: "node-1"},
			Status: corev1.NodeStatus{Conditions: []corev1.NodeCondition{
				{Type: corev1.NodeReady, Status: corev1.ConditionTrue},
			}},
		},
		failed,
	)
	client := NewK8sClientWithClientset(clientset)

	health, err := client.GetClusterHealth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "degraded", health.Status)
}
