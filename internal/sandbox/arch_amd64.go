// Copyright 2024 The kcgi-go Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build linux && amd64

package sandbox

// auditArch is AUDIT_ARCH_X86_64 from linux/audit.h: EM_X86_64 (62)
// OR'd with __AUDIT_ARCH_64BIT and __AUDIT_ARCH_LE.
const auditArch uint32 = 0xc000003e
