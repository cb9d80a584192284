/*
Package auth provides helpers for the credentials a workload finds mounted
inside a Kubernetes pod.

vault-config uses these to log in through Vault's Kubernetes auth method once
the bootstrap credential has been voided, and to configure that auth method
with the cluster CA.

# Usage

	creds, err := auth.ReadMounted(auth.DefaultMountPaths())
	if err != nil {
	    return err
	}
	// creds.Token is the pod's service account JWT
*/
package auth
